// Package metadb opens the key-value database backing the storage, by type.
package metadb

import (
	"fmt"
	"os"

	"github.com/vocdoni/arbo/memdb"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/pebbledb"
)

// TypeMemory is a non persistent database, for tests and dry runs.
const TypeMemory = "memory"

// New opens a database of the given type, creating dir if needed.
func New(typ, dir string) (db.Database, error) {
	switch typ {
	case db.TypePebble:
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		return pebbledb.New(db.Options{Path: dir})
	case TypeMemory:
		return memdb.New(), nil
	default:
		return nil, fmt.Errorf("invalid dbType: %q. Available types: %q, %q",
			typ, db.TypePebble, TypeMemory)
	}
}
