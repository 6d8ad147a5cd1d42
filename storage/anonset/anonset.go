// Package anonset stores anonymity sets as arbo merkle trees. A set belongs
// to one anon group; its members are leaves keyed by a hash of the member
// id, with the member identity commitment as value. Every root a set had is
// remembered, so proofs made against an older root stay verifiable.
package anonset

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/vocdoni/anonclaims/log"
	"github.com/vocdoni/anonclaims/types"
	"github.com/vocdoni/arbo"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

const (
	treePrefix      = "st_"
	referencePrefix = "sr_"
	groupPrefix     = "sg_"
	rootPrefix      = "sh_"
)

var (
	// ErrSetNotFound is returned when a set is not in the database.
	ErrSetNotFound = errors.New("anonymity set not found")
	// ErrSetAlreadyExists is returned by New if the set id or its group is
	// already taken.
	ErrSetAlreadyExists = errors.New("anonymity set already exists")
	// ErrMemberNotFound is returned when a key is not in the tree.
	ErrMemberNotFound = errors.New("member not found")

	hashFunction = arbo.HashFunctionPoseidon
	rootMarker   = []byte{1}
)

type updateRootRequest struct {
	setID   uuid.UUID
	newRoot []byte
	done    chan error
}

// MembershipProof is a merkle inclusion proof of a member.
type MembershipProof struct {
	Root     types.HexBytes `json:"root"`
	Key      types.HexBytes `json:"key"`
	Value    types.HexBytes `json:"value"`
	Siblings types.HexBytes `json:"siblings"`
}

// DB is a persistent database of anonymity sets, safe for concurrent use.
type DB struct {
	mu        sync.RWMutex
	db        db.Database
	loaded    map[uuid.UUID]*SetRef
	rootIndex map[string]uuid.UUID

	rootUpdates chan *updateRootRequest
}

// New returns a DB on top of the given database and starts its root update
// worker.
func New(database db.Database) *DB {
	d := &DB{
		db:          database,
		loaded:      make(map[uuid.UUID]*SetRef),
		rootIndex:   make(map[string]uuid.UUID),
		rootUpdates: make(chan *updateRootRequest, 100),
	}
	go func() {
		for req := range d.rootUpdates {
			err := d.updateRoot(req.setID, req.newRoot)
			if err != nil {
				log.Warnw("error updating anonymity set root",
					"id", req.setID.String(),
					"err", err)
			}
			req.done <- err
		}
	}()
	return d
}

// MemberKey hashes a member id into a tree key. Keys are truncated so they
// fit the tree levels and the poseidon field.
func MemberKey(memberID []byte) []byte {
	h := sha256.Sum256(memberID)
	return h[:types.AnonSetKeyMaxLen]
}

// CommitmentValue encodes an identity commitment as a leaf value.
func CommitmentValue(commitment *big.Int) []byte {
	return arbo.BigIntToBytes(hashFunction.Len(), commitment)
}

func referenceKey(id uuid.UUID) []byte {
	return append([]byte(referencePrefix), id[:]...)
}

func groupKey(groupID string) []byte {
	return append([]byte(groupPrefix), groupID...)
}

func rootKey(id uuid.UUID, root []byte) []byte {
	k := append([]byte(rootPrefix), id[:]...)
	return append(k, root...)
}

func setPrefix(id uuid.UUID) []byte {
	return append([]byte(treePrefix), id[:]...)
}

// New creates an empty set bound to a group.
func (d *DB) New(id uuid.UUID, groupID, title string) (*SetRef, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.loaded[id]; ok {
		return nil, ErrSetAlreadyExists
	}
	for _, k := range [][]byte{referenceKey(id), groupKey(groupID)} {
		if _, err := d.db.Get(k); err == nil {
			return nil, ErrSetAlreadyExists
		} else if !errors.Is(err, db.ErrKeyNotFound) {
			return nil, err
		}
	}

	ref := &SetRef{
		ID:        id,
		GroupID:   groupID,
		Title:     title,
		MaxLevels: types.AnonSetTreeMaxLevels,
		CreatedAt: time.Now().UTC(),
	}
	if err := d.openTree(ref); err != nil {
		return nil, err
	}

	data, err := cbor.Marshal(ref)
	if err != nil {
		return nil, err
	}
	wtx := d.db.WriteTx()
	defer wtx.Discard()
	if err := wtx.Set(referenceKey(id), data); err != nil {
		return nil, err
	}
	if err := wtx.Set(groupKey(groupID), id[:]); err != nil {
		return nil, err
	}
	if err := wtx.Set(rootKey(id, ref.currentRoot), rootMarker); err != nil {
		return nil, err
	}
	if err := wtx.Commit(); err != nil {
		return nil, err
	}

	d.loaded[id] = ref
	d.rootIndex[hex.EncodeToString(ref.currentRoot)] = id
	return ref, nil
}

func (d *DB) openTree(ref *SetRef) error {
	tree, err := arbo.NewTree(arbo.Config{
		Database:     prefixeddb.NewPrefixedDatabase(d.db, setPrefix(ref.ID)),
		MaxLevels:    ref.MaxLevels,
		HashFunction: hashFunction,
	})
	if err != nil {
		return err
	}
	root, err := tree.Root()
	if err != nil {
		return err
	}
	ref.tree = tree
	ref.currentRoot = root
	ref.rootUpdates = d.rootUpdates
	return nil
}

// Exists reports whether the set is stored.
func (d *DB) Exists(id uuid.UUID) bool {
	d.mu.RLock()
	_, ok := d.loaded[id]
	d.mu.RUnlock()
	if ok {
		return true
	}
	_, err := d.db.Get(referenceKey(id))
	return err == nil
}

// Load returns a set from memory or from the database.
func (d *DB) Load(id uuid.UUID) (*SetRef, error) {
	d.mu.RLock()
	if ref, ok := d.loaded[id]; ok {
		d.mu.RUnlock()
		return ref, nil
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	// another goroutine may have loaded it meanwhile
	if ref, ok := d.loaded[id]; ok {
		return ref, nil
	}
	data, err := d.db.Get(referenceKey(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSetNotFound, id)
		}
		return nil, err
	}
	ref := &SetRef{}
	if err := cbor.Unmarshal(data, ref); err != nil {
		return nil, err
	}
	if err := d.openTree(ref); err != nil {
		return nil, err
	}
	d.loaded[id] = ref
	d.rootIndex[hex.EncodeToString(ref.currentRoot)] = id
	return ref, nil
}

// ByGroup returns the set bound to a group.
func (d *DB) ByGroup(groupID string) (*SetRef, error) {
	raw, err := d.db.Get(groupKey(groupID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: group %s", ErrSetNotFound, groupID)
		}
		return nil, err
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return nil, err
	}
	return d.Load(id)
}

// Del removes a set. The tree nodes are removed in the background.
func (d *DB) Del(id uuid.UUID) error {
	ref, err := d.Load(id)
	if err != nil {
		return err
	}
	wtx := d.db.WriteTx()
	defer wtx.Discard()
	if err := wtx.Delete(referenceKey(id)); err != nil {
		return err
	}
	if err := wtx.Delete(groupKey(ref.GroupID)); err != nil {
		return err
	}
	if err := wtx.Commit(); err != nil {
		return err
	}

	d.mu.Lock()
	if rk := hex.EncodeToString(ref.Root()); d.rootIndex[rk] == id {
		delete(d.rootIndex, rk)
	}
	delete(d.loaded, id)
	d.mu.Unlock()

	go func() {
		for _, prefix := range [][]byte{setPrefix(id), append([]byte(rootPrefix), id[:]...)} {
			if _, err := deleteByPrefix(d.db, prefix); err != nil {
				log.Warnw("error deleting anonymity set data", "id", id.String(), "err", err)
			}
		}
	}()
	return nil
}

func deleteByPrefix(kv db.Database, prefix []byte) (int, error) {
	database := prefixeddb.NewPrefixedDatabase(kv, prefix)
	wtx := database.WriteTx()
	defer wtx.Discard()
	count := 0
	err := database.Iterate(nil, func(k, _ []byte) bool {
		if err := wtx.Delete(k); err != nil {
			log.Warnw("could not remove key from database", "key", hex.EncodeToString(k))
		} else {
			count++
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	return count, wtx.Commit()
}

// KnownRoot reports whether root is the current or a past root of the set.
func (d *DB) KnownRoot(id uuid.UUID, root []byte) bool {
	if len(root) == 0 {
		return false
	}
	_, err := d.db.Get(rootKey(id, root))
	return err == nil
}

// ProofByRoot generates the inclusion proof of a member in the set whose
// current root is root.
func (d *DB) ProofByRoot(root, memberKey []byte) (*MembershipProof, error) {
	d.mu.RLock()
	id, ok := d.rootIndex[hex.EncodeToString(root)]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no set with root %x", ErrSetNotFound, root)
	}
	ref, err := d.Load(id)
	if err != nil {
		return nil, err
	}
	return ref.Proof(memberKey)
}

// Proof generates the inclusion proof of a member against the current root.
func (sr *SetRef) Proof(memberKey []byte) (*MembershipProof, error) {
	root := sr.Root()
	key, value, siblings, inclusion, err := sr.GenProof(memberKey)
	if err != nil {
		return nil, err
	}
	if !inclusion {
		return nil, ErrMemberNotFound
	}
	return &MembershipProof{Root: root, Key: key, Value: value, Siblings: siblings}, nil
}

// updateRoot moves the root index of a set and records the new root as
// known.
func (d *DB) updateRoot(id uuid.UUID, newRoot []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ref, ok := d.loaded[id]
	if !ok {
		return ErrSetNotFound
	}
	wtx := d.db.WriteTx()
	defer wtx.Discard()
	if err := wtx.Set(rootKey(id, newRoot), rootMarker); err != nil {
		return err
	}
	if err := wtx.Commit(); err != nil {
		return err
	}

	ref.treeMu.Lock()
	oldKey := hex.EncodeToString(ref.currentRoot)
	ref.currentRoot = append([]byte(nil), newRoot...)
	ref.treeMu.Unlock()

	if d.rootIndex[oldKey] == id {
		delete(d.rootIndex, oldKey)
	}
	d.rootIndex[hex.EncodeToString(newRoot)] = id
	return nil
}
