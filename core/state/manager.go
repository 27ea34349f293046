package state

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"solaire/storage"
)

var (
	rolePrefix = []byte("role:")
	kvPrefix   = []byte("kv:")
	rootKey    = []byte("meta:state-root")
)

type pending struct {
	value   []byte
	deleted bool
}

type journalEntry struct {
	key  string
	prev pending
	had  bool
}

// Manager buffers state writes in a journal on top of a storage.Database.
// Writes become durable only on Commit; RevertToSnapshot discards everything
// written after the snapshot was taken. A Manager is not safe for concurrent
// use; callers serialise access.
type Manager struct {
	db      storage.Database
	dirty   map[string]pending
	journal []journalEntry
	root    common.Hash
}

// NewManager loads the last committed root from db.
func NewManager(db storage.Database) (*Manager, error) {
	if db == nil {
		return nil, fmt.Errorf("state: database required")
	}
	m := &Manager{db: db, dirty: make(map[string]pending)}
	raw, err := db.Get(rootKey)
	switch {
	case err == nil:
		m.root = common.BytesToHash(raw)
	case errors.Is(err, storage.ErrNotFound):
	default:
		return nil, err
	}
	return m, nil
}

func roleKey(role string) []byte {
	buf := make([]byte, len(rolePrefix)+len(role))
	copy(buf, rolePrefix)
	copy(buf[len(rolePrefix):], role)
	return ethcrypto.Keccak256(buf)
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(append(append([]byte(nil), kvPrefix...), key...))
}

func (m *Manager) get(key []byte) ([]byte, error) {
	if p, ok := m.dirty[string(key)]; ok {
		if p.deleted {
			return nil, nil
		}
		return p.value, nil
	}
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

func (m *Manager) set(key []byte, value []byte, deleted bool) {
	k := string(key)
	prev, had := m.dirty[k]
	m.journal = append(m.journal, journalEntry{key: k, prev: prev, had: had})
	m.dirty[k] = pending{value: value, deleted: deleted}
}

// Snapshot returns an identifier that RevertToSnapshot can roll back to.
func (m *Manager) Snapshot() int {
	return len(m.journal)
}

// RevertToSnapshot undoes every write made after the snapshot was taken.
func (m *Manager) RevertToSnapshot(id int) {
	if id < 0 || id > len(m.journal) {
		return
	}
	for i := len(m.journal) - 1; i >= id; i-- {
		entry := m.journal[i]
		if entry.had {
			m.dirty[entry.key] = entry.prev
		} else {
			delete(m.dirty, entry.key)
		}
	}
	m.journal = m.journal[:id]
}

// Pending reports the number of keys awaiting Commit.
func (m *Manager) Pending() int {
	return len(m.dirty)
}

// Root returns the last committed state root.
func (m *Manager) Root() common.Hash {
	return m.root
}

// Commit flushes buffered writes in key order and chains a new state root over
// the previous root and the flushed entries.
func (m *Manager) Commit() (common.Hash, error) {
	if len(m.dirty) == 0 {
		return m.root, nil
	}
	keys := make([]string, 0, len(m.dirty))
	for k := range m.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	chunks := make([][]byte, 0, 1+2*len(keys))
	chunks = append(chunks, m.root.Bytes())
	for _, k := range keys {
		p := m.dirty[k]
		if p.deleted {
			if err := m.db.Delete([]byte(k)); err != nil {
				return m.root, err
			}
			chunks = append(chunks, []byte(k), nil)
			continue
		}
		if err := m.db.Put([]byte(k), p.value); err != nil {
			return m.root, err
		}
		chunks = append(chunks, []byte(k), p.value)
	}
	root := common.BytesToHash(ethcrypto.Keccak256(chunks...))
	if err := m.db.Put(rootKey, root.Bytes()); err != nil {
		return m.root, err
	}
	m.root = root
	m.dirty = make(map[string]pending)
	m.journal = m.journal[:0]
	return root, nil
}

// SetRole adds addr to the member list of role.
func (m *Manager) SetRole(role string, addr []byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("role must not be empty")
	}
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	members, err := m.RoleMembers(trimmed)
	if err != nil {
		return err
	}
	for _, existing := range members {
		if bytes.Equal(existing, addr) {
			return nil
		}
	}
	members = append(members, append([]byte(nil), addr...))
	sort.Slice(members, func(i, j int) bool {
		return bytes.Compare(members[i], members[j]) < 0
	})
	encoded, err := rlp.EncodeToBytes(members)
	if err != nil {
		return err
	}
	m.set(roleKey(trimmed), encoded, false)
	return nil
}

// RemoveRole drops addr from role. Removing a non-member is a no-op.
func (m *Manager) RemoveRole(role string, addr []byte) error {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return fmt.Errorf("role must not be empty")
	}
	members, err := m.RoleMembers(trimmed)
	if err != nil {
		return err
	}
	filtered := members[:0]
	for _, existing := range members {
		if !bytes.Equal(existing, addr) {
			filtered = append(filtered, existing)
		}
	}
	if len(filtered) == len(members) {
		return nil
	}
	encoded, err := rlp.EncodeToBytes(filtered)
	if err != nil {
		return err
	}
	m.set(roleKey(trimmed), encoded, false)
	return nil
}

// RoleMembers returns all addresses assigned to the provided role.
func (m *Manager) RoleMembers(role string) ([][]byte, error) {
	data, err := m.get(roleKey(strings.TrimSpace(role)))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return [][]byte{}, nil
	}
	var members [][]byte
	if err := rlp.DecodeBytes(data, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// HasRole reports whether addr holds role. Read errors count as not holding it.
func (m *Manager) HasRole(role string, addr []byte) bool {
	if len(addr) == 0 {
		return false
	}
	members, err := m.RoleMembers(role)
	if err != nil {
		return false
	}
	for _, member := range members {
		if bytes.Equal(member, addr) {
			return true
		}
	}
	return false
}

// KVPut stores value under key using RLP encoding.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.set(kvKey(key), encoded, false)
	return nil
}

// KVGet decodes the value stored under key into out. The boolean reports
// whether the key existed.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	m.set(kvKey(key), nil, true)
	return nil
}

// KVAppend appends value to the byte-slice list under key. Duplicates are ignored.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	list, err := m.byteList(key)
	if err != nil {
		return err
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	return m.KVPut(key, list)
}

// KVRemove drops value from the byte-slice list under key.
func (m *Manager) KVRemove(key []byte, value []byte) error {
	list, err := m.byteList(key)
	if err != nil {
		return err
	}
	filtered := make([][]byte, 0, len(list))
	for _, existing := range list {
		if !bytes.Equal(existing, value) {
			filtered = append(filtered, existing)
		}
	}
	if len(filtered) == len(list) {
		return nil
	}
	return m.KVPut(key, filtered)
}

func (m *Manager) byteList(key []byte) ([][]byte, error) {
	var list [][]byte
	if _, err := m.KVGet(key, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// KVGetList decodes an RLP list under key into out, which must be a pointer to
// a slice. Missing keys yield an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.get(kvKey(key))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}
