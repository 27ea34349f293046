package index

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"solaire/core/events"
	"solaire/crypto"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	return db
}

var (
	alice = [20]byte{0xA1}
	bob   = [20]byte{0xB0}
)

func TestRecordAndQuery(t *testing.T) {
	db := setupTestDB(t)
	ix, err := New(db, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = ix.Record(ctx, events.Deposited{Account: alice, Amount: big.NewInt(5)})
	require.NoError(t, err)
	_, err = ix.Record(ctx, events.Transfer{Token: "USDS", From: alice, To: bob, Amount: big.NewInt(7)})
	require.NoError(t, err)
	swapped, err := ix.Record(ctx, events.TokenSwapped{
		Account: bob, TokenIn: "USDS", TokenOut: "EURS",
		AmountIn: big.NewInt(10000), AmountOut: big.NewInt(9997), Fee: big.NewInt(3),
	})
	require.NoError(t, err)
	require.Equal(t, uint64(3), swapped.Sequence)
	require.NotEqual(t, uuid.Nil, swapped.ID)

	all, err := ix.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, events.TypeVaultDeposited, all[0].Type)
	require.Equal(t, "5", all[0].Attrs()["amount"])

	aliceRecords, err := ix.Query(ctx, Filter{Account: crypto.FromRaw(alice).String()})
	require.NoError(t, err)
	require.Len(t, aliceRecords, 2)

	swaps, err := ix.Query(ctx, Filter{Type: events.TypeTokenSwapped})
	require.NoError(t, err)
	require.Len(t, swaps, 1)
	require.Equal(t, "9997", swaps[0].Attrs()["amountOut"])

	later, err := ix.Query(ctx, Filter{AfterSeq: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, later, 1)
	require.Equal(t, uint64(2), later[0].Sequence)
}

func TestSequenceResumesAfterReopen(t *testing.T) {
	db := setupTestDB(t)
	ix, err := New(db, nil)
	require.NoError(t, err)
	_, err = ix.Record(context.Background(), events.Deposited{Account: alice, Amount: big.NewInt(1)})
	require.NoError(t, err)

	reopened, err := New(db, nil)
	require.NoError(t, err)
	rec, err := reopened.Record(context.Background(), events.Deposited{Account: alice, Amount: big.NewInt(2)})
	require.NoError(t, err)
	require.Equal(t, uint64(2), rec.Sequence)
}

func TestEmitPersistsInOrder(t *testing.T) {
	ix, err := New(setupTestDB(t), nil)
	require.NoError(t, err)
	var sink events.Emitter = ix
	for i := int64(1); i <= 50; i++ {
		sink.Emit(events.Deposited{Account: alice, Amount: big.NewInt(i)})
	}
	sink.Emit(events.EmergencyWithdrawn{Account: alice, Amount: big.NewInt(1)})
	sink.Emit(nil)

	records, err := ix.Query(context.Background(), Filter{Limit: maxLimit})
	require.NoError(t, err)
	require.Len(t, records, 51)
	for i, rec := range records {
		require.Equal(t, uint64(i+1), rec.Sequence)
	}
	require.Equal(t, events.TypeVaultEmergencyWithdrawn, records[50].Type)
}
