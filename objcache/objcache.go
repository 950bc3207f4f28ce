// Package objcache stores compiled object files and instance snapshots in
// a SQLite database.
//
// Objects are keyed by the xxh3 fingerprint of their source, so an
// unchanged script is never recompiled. Snapshots are keyed by instance ID
// and remember the compilation they belong to.
package objcache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"github.com/zeebo/xxh3"
	_ "modernc.org/sqlite"

	"github.com/chazu/xmr/compiler"
	"github.com/chazu/xmr/pkg/objcode"
	"github.com/chazu/xmr/vm"
)

var log = commonlog.GetLogger("xmr.objcache")

// ErrNotFound indicates the requested entry doesn't exist.
var ErrNotFound = errors.New("not found in cache")

const schema = `
CREATE TABLE IF NOT EXISTS objects (
	hash       TEXT PRIMARY KEY,
	compile_id TEXT NOT NULL,
	data       BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	compile_id TEXT NOT NULL,
	data       BLOB NOT NULL
);`

// Store is a handle on the cache database. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the cache at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func hashKey(h uint64) string {
	return strconv.FormatUint(h, 16)
}

// PutObject stores a marshalled object file under its source hash.
func (s *Store) PutObject(obj *objcode.ObjectCode) error {
	data, err := obj.Marshal()
	if err != nil {
		return fmt.Errorf("marshalling object: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO objects (hash, compile_id, data) VALUES (?, ?, ?)",
		hashKey(obj.SourceHash), obj.CompileID.String(), data,
	)
	if err != nil {
		return fmt.Errorf("saving object: %w", err)
	}
	return nil
}

// Object returns the object file bytes cached for a source hash.
func (s *Store) Object(hash uint64) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM objects WHERE hash = ?", hashKey(hash)).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying object: %w", err)
	}
	return data, nil
}

// Compile returns the cached object for source, compiling and storing it on
// a miss. The returned bool reports a cache hit. A cached entry that no
// longer loads is replaced.
func (s *Store) Compile(source string, tables *compiler.Tables) (*objcode.ObjectCode, bool, error) {
	hash := xxh3.HashString(source)
	data, err := s.Object(hash)
	switch {
	case err == nil:
		obj, uerr := checkCached(data, hash)
		if uerr == nil {
			log.Debugf("cache hit %s", hashKey(hash))
			return obj, true, nil
		}
		log.Warningf("discarding cached object %s: %s", hashKey(hash), uerr)
	case !errors.Is(err, ErrNotFound):
		return nil, false, err
	}

	obj, diags := compiler.Compile(source, tables)
	if len(diags) > 0 {
		return nil, false, diags
	}
	if err := s.PutObject(obj); err != nil {
		return nil, false, err
	}
	return obj, false, nil
}

// checkCached decodes a cached row and verifies it belongs to hash and
// still materializes.
func checkCached(data []byte, hash uint64) (*objcode.ObjectCode, error) {
	obj, err := objcode.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	if obj.SourceHash != hash {
		return nil, fmt.Errorf("source hash %s, want %s", hashKey(obj.SourceHash), hashKey(hash))
	}
	if _, err := objcode.Materialize(obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// SaveSnapshot persists the state of an instance, replacing any earlier
// snapshot of the same instance.
func (s *Store) SaveSnapshot(in *vm.Instance) error {
	data, err := in.MarshalSnapshot()
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO snapshots (id, compile_id, data) VALUES (?, ?, ?)",
		in.ID.String(), in.Program.CompileID.String(), data,
	)
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot restores instance id against prog.
func (s *Store) LoadSnapshot(id uuid.UUID, prog *objcode.Program, cfg vm.Config) (*vm.Instance, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM snapshots WHERE id = ?", id.String()).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}

	snap, err := vm.UnmarshalSnapshot(data)
	if err != nil {
		return nil, err
	}
	return vm.Restore(snap, prog, cfg)
}

// Snapshots lists the instance IDs saved for a compilation.
func (s *Store) Snapshots(compileID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.Query("SELECT id FROM snapshots WHERE compile_id = ? ORDER BY id", compileID.String())
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("bad snapshot id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteSnapshot removes the snapshot of instance id.
func (s *Store) DeleteSnapshot(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec("DELETE FROM snapshots WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("deleting snapshot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Prune drops every object whose compile ID is not in keep, along with the
// snapshots taken against it. It returns the number of objects removed.
func (s *Store) Prune(keep []uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("CREATE TEMP TABLE IF NOT EXISTS keep (id TEXT PRIMARY KEY)"); err != nil {
		return 0, fmt.Errorf("pruning: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM keep"); err != nil {
		return 0, fmt.Errorf("pruning: %w", err)
	}
	for _, id := range keep {
		if _, err := tx.Exec("INSERT OR IGNORE INTO keep (id) VALUES (?)", id.String()); err != nil {
			return 0, fmt.Errorf("pruning: %w", err)
		}
	}
	res, err := tx.Exec("DELETE FROM objects WHERE compile_id NOT IN (SELECT id FROM keep)")
	if err != nil {
		return 0, fmt.Errorf("pruning objects: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM snapshots WHERE compile_id NOT IN (SELECT id FROM keep)"); err != nil {
		return 0, fmt.Errorf("pruning snapshots: %w", err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	log.Infof("pruned %d objects from %s", n, s.path)
	return int(n), nil
}
