// Package storage is the key-value store of the protocol records, on top of
// a dvote db.Database (pebble in production). The following prefixes are
// used:
//   - 'mb/' memberships, by public key
//   - 'cl/' claims, by id
//   - 'vo/' votes, by claim id and vote id
//   - 'vv/' voter index, by claim id and public key
//   - 'nu/' reserved nullifiers, by scope and nullifier
//   - 'ta/' vote tallies, by claim id
//   - 'lk/' likes, by target id and public key
//   - 'ms/' messages, by id
//   - 'al/' validator allow-list, by group id
//
// Writes that touch several records (a vote with its nullifier and tally, a
// like with its counter, a status transition) go in a single write
// transaction, serialized by a global lock.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vocdoni/anonclaims/log"
	"github.com/vocdoni/anonclaims/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var (
	membershipPrefix = []byte("mb/")
	claimPrefix      = []byte("cl/")
	votePrefix       = []byte("vo/")
	voterPrefix      = []byte("vv/")
	nullifierPrefix  = []byte("nu/")
	tallyPrefix      = []byte("ta/")
	likePrefix       = []byte("lk/")
	messagePrefix    = []byte("ms/")
	allowListPrefix  = []byte("al/")

	// keySeparator joins composite keys. Ids never contain it.
	keySeparator = []byte{0}
	marker       = []byte{1}
)

// ErrNotFound is returned when a record is not in the store. It wraps
// types.ErrNotFound.
var ErrNotFound = fmt.Errorf("%w in storage", types.ErrNotFound)

// Storage implements every store the protocol needs.
type Storage struct {
	db         db.Database
	globalLock sync.Mutex
}

// New creates a new Storage instance.
func New(database db.Database) *Storage {
	return &Storage{db: database}
}

// Close closes the underlying database.
func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		log.Warnw("error closing storage", "error", err.Error())
	}
}

func compositeKey(parts ...string) []byte {
	var k []byte
	for i, p := range parts {
		if i > 0 {
			k = append(k, keySeparator...)
		}
		k = append(k, p...)
	}
	return k
}

func withPrefix(prefix, key []byte) []byte {
	k := make([]byte, 0, len(prefix)+len(key))
	k = append(k, prefix...)
	return append(k, key...)
}

// getRecord decodes the record stored under prefix+key into out.
func (s *Storage) getRecord(prefix, key []byte, out any) error {
	data, err := prefixeddb.NewPrefixedReader(s.db, prefix).Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("get %s%x: %w", prefix, key, err)
	}
	if err := decodeRecord(data, out); err != nil {
		return fmt.Errorf("decode %s%x: %w", prefix, key, err)
	}
	return nil
}

// setRecord stores a single record.
func (s *Storage) setRecord(ctx context.Context, prefix, key []byte, record any) error {
	val, err := encodeRecord(record)
	if err != nil {
		return err
	}
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	defer wTx.Discard()
	if err := wTx.Set(key, val); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return wTx.Commit()
}

// get returns the raw value under prefix+key.
func (s *Storage) get(prefix, key []byte) ([]byte, error) {
	data, err := s.db.Get(withPrefix(prefix, key))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *Storage) exists(prefix, key []byte) (bool, error) {
	_, err := s.db.Get(withPrefix(prefix, key))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, db.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}

// iterate decodes every record under prefix+start into a new T and calls fn
// until it returns false. Records that can not be decoded are skipped.
func iterate[T any](s *Storage, prefix, start []byte, fn func(*T) bool) error {
	return prefixeddb.NewPrefixedReader(s.db, prefix).Iterate(start, func(k, v []byte) bool {
		item := new(T)
		if err := decodeRecord(v, item); err != nil {
			log.Warnw("skipping undecodable record", "key", fmt.Sprintf("%s%x", prefix, k), "error", err.Error())
			return true
		}
		return fn(item)
	})
}
