package anonset

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vocdoni/arbo"
)

// SetRef is a loaded anonymity set. Every access to the tree and to
// currentRoot is serialized by treeMu.
type SetRef struct {
	ID        uuid.UUID `cbor:"1,keyasint"`
	GroupID   string    `cbor:"2,keyasint"`
	Title     string    `cbor:"3,keyasint"`
	MaxLevels int       `cbor:"4,keyasint"`
	CreatedAt time.Time `cbor:"5,keyasint"`

	currentRoot []byte
	tree        *arbo.Tree
	treeMu      sync.Mutex
	rootUpdates chan *updateRootRequest
}

// Insert adds a member and publishes the new root.
func (sr *SetRef) Insert(key, value []byte) error {
	sr.treeMu.Lock()
	if err := sr.tree.Add(key, value); err != nil {
		sr.treeMu.Unlock()
		return err
	}
	newRoot, err := sr.tree.Root()
	sr.treeMu.Unlock()
	if err != nil {
		return err
	}
	return sr.sendUpdateRoot(newRoot)
}

// InsertBatch adds several members at once. Invalid entries are returned,
// the valid ones are kept.
func (sr *SetRef) InsertBatch(keys, values [][]byte) ([]arbo.Invalid, error) {
	sr.treeMu.Lock()
	invalid, err := sr.tree.AddBatch(keys, values)
	if err != nil {
		sr.treeMu.Unlock()
		return invalid, err
	}
	newRoot, err := sr.tree.Root()
	sr.treeMu.Unlock()
	if err != nil {
		return invalid, err
	}
	return invalid, sr.sendUpdateRoot(newRoot)
}

func (sr *SetRef) sendUpdateRoot(newRoot []byte) error {
	done := make(chan error, 1)
	sr.rootUpdates <- &updateRootRequest{setID: sr.ID, newRoot: newRoot, done: done}
	return <-done
}

// Root returns the current root, nil on error.
func (sr *SetRef) Root() []byte {
	sr.treeMu.Lock()
	defer sr.treeMu.Unlock()
	root, err := sr.tree.Root()
	if err != nil {
		return nil
	}
	return root
}

// Size returns the number of members.
func (sr *SetRef) Size() int {
	sr.treeMu.Lock()
	defer sr.treeMu.Unlock()
	size, err := sr.tree.GetNLeafs()
	if err != nil {
		return 0
	}
	return size
}

// Value returns the value stored for a member key.
func (sr *SetRef) Value(key []byte) ([]byte, error) {
	sr.treeMu.Lock()
	defer sr.treeMu.Unlock()
	_, value, err := sr.tree.Get(key)
	return value, err
}

// GenProof returns the merkle proof of a member key and whether it is
// included.
func (sr *SetRef) GenProof(key []byte) (leafKey, value, siblings []byte, inclusion bool, err error) {
	sr.treeMu.Lock()
	defer sr.treeMu.Unlock()
	return sr.tree.GenProof(key)
}

// VerifyProof checks a merkle proof against a root.
func VerifyProof(key, value, root, siblings []byte) bool {
	valid, err := arbo.CheckProof(hashFunction, key, value, root, siblings)
	if err != nil {
		return false
	}
	return valid
}
