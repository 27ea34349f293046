package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"solaire/storage"
)

type record struct {
	Amount *big.Int
	Label  string
}

func newTestManager(t *testing.T) (*Manager, *storage.MemDB) {
	t.Helper()
	db := storage.NewMemDB()
	m, err := NewManager(db)
	require.NoError(t, err)
	return m, db
}

func TestKVPutGetDelete(t *testing.T) {
	m, _ := newTestManager(t)
	key := []byte("vault/deposit/a")

	ok, err := m.KVGet(key, &record{})
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, m.KVPut(key, record{Amount: big.NewInt(42), Label: "x"}))
	var got record
	ok, err = m.KVGet(key, &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(42), got.Amount.Int64())
	require.Equal(t, "x", got.Label)

	require.NoError(t, m.KVDelete(key))
	ok, err = m.KVGet(key, &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestKVListAppendRemove(t *testing.T) {
	m, _ := newTestManager(t)
	key := []byte("owned")

	var list [][]byte
	require.NoError(t, m.KVGetList(key, &list))
	require.NotNil(t, list)
	require.Len(t, list, 0)

	require.NoError(t, m.KVAppend(key, []byte{1}))
	require.NoError(t, m.KVAppend(key, []byte{2}))
	require.NoError(t, m.KVAppend(key, []byte{1}))
	require.NoError(t, m.KVGetList(key, &list))
	require.Equal(t, [][]byte{{1}, {2}}, list)

	require.NoError(t, m.KVRemove(key, []byte{1}))
	require.NoError(t, m.KVGetList(key, &list))
	require.Equal(t, [][]byte{{2}}, list)
}

func TestSnapshotRevertDiscardsWrites(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.KVPut([]byte("a"), uint64(1)))

	snap := m.Snapshot()
	require.NoError(t, m.KVPut([]byte("a"), uint64(2)))
	require.NoError(t, m.KVPut([]byte("b"), uint64(3)))
	require.NoError(t, m.SetRole("vault/admin", []byte{9}))
	m.RevertToSnapshot(snap)

	var v uint64
	ok, err := m.KVGet([]byte("a"), &v)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), v)

	ok, err = m.KVGet([]byte("b"), &v)
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, m.HasRole("vault/admin", []byte{9}))
}

func TestCommitPersistsAndChainsRoot(t *testing.T) {
	m, db := newTestManager(t)
	require.NoError(t, m.KVPut([]byte("a"), uint64(7)))
	root1, err := m.Commit()
	require.NoError(t, err)
	require.NotEqual(t, [32]byte{}, [32]byte(root1))
	require.Equal(t, 0, m.Pending())

	require.NoError(t, m.KVPut([]byte("a"), uint64(8)))
	root2, err := m.Commit()
	require.NoError(t, err)
	require.NotEqual(t, root1, root2)

	reopened, err := NewManager(db)
	require.NoError(t, err)
	require.Equal(t, root2, reopened.Root())
	var v uint64
	ok, err := reopened.KVGet([]byte("a"), &v)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(8), v)
}

func TestRoles(t *testing.T) {
	m, _ := newTestManager(t)
	require.Error(t, m.SetRole(" ", []byte{1}))
	require.NoError(t, m.SetRole("swap/admin", []byte{2}))
	require.NoError(t, m.SetRole("swap/admin", []byte{1}))
	require.NoError(t, m.SetRole("swap/admin", []byte{1}))

	members, err := m.RoleMembers("swap/admin")
	require.NoError(t, err)
	require.Equal(t, [][]byte{{1}, {2}}, members)

	require.NoError(t, m.RemoveRole("swap/admin", []byte{1}))
	require.False(t, m.HasRole("swap/admin", []byte{1}))
	require.True(t, m.HasRole("swap/admin", []byte{2}))
}
