// Package store implements the object store facade: a CID-keyed blob
// map, a mutable name index, and a reserved (never populated by the
// core) compiled-code cache, all backed by a single embedded SQLite
// file opened single-writer.
package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/marchdb/march/internal/cid"
	"github.com/marchdb/march/internal/marcherr"
)

//go:embed schema.sql
var schemaSQL string

// dbSuffix matches original_source/src/store.rs's derive_db_path: a
// fixed extension appended to a caller-chosen base path.
const dbSuffix = ".march5.db"

// DerivePath appends the store's fixed suffix to base unless it is
// already present.
func DerivePath(base string) string {
	if strings.HasSuffix(base, dbSuffix) {
		return base
	}
	return base + dbSuffix
}

// Store wraps a single-writer SQLite connection.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path, applying pragmas and the
// schema. Idempotent: safe to call repeatedly against the same file.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: creating parent dirs: %v", marcherr.ErrStoreIO, err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", marcherr.ErrStoreIO, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: connecting: %v", marcherr.ErrStoreIO, err)
	}

	// SQLite allows exactly one writer; a single pooled connection
	// avoids SQLITE_BUSY contention under the core's single-writer
	// scheduling model (spec §5).
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: applying schema: %v", marcherr.ErrStoreIO, err)
	}
	return &Store{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA mmap_size = 268435456",
		"PRAGMA cache_size = -262144",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%w: pragma %q: %v", marcherr.ErrStoreIO, p, err)
		}
	}
	return nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put hashes bytes, inserts the (cid, kind, bytes) row if absent, and
// returns the CID plus whether a new row was inserted. Content-addressed
// insertion is idempotent: re-putting identical bytes under the same
// kind never errors.
func (s *Store) Put(kind string, bytes []byte) (cid.CID, bool, error) {
	c := cid.Compute(bytes)
	res, err := s.db.Exec(`INSERT OR IGNORE INTO object (cid, kind, bytes) VALUES (?, ?, ?)`, c.Bytes(), kind, bytes)
	if err != nil {
		return cid.CID{}, false, fmt.Errorf("%w: put object: %v", marcherr.ErrStoreIO, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return cid.CID{}, false, fmt.Errorf("%w: put object rows affected: %v", marcherr.ErrStoreIO, err)
	}
	return c, n > 0, nil
}

// Get loads an object's kind and bytes by CID.
func (s *Store) Get(c cid.CID) (kind string, bytes []byte, err error) {
	row := s.db.QueryRow(`SELECT kind, bytes FROM object WHERE cid = ?`, c.Bytes())
	if err := row.Scan(&kind, &bytes); err != nil {
		if err == sql.ErrNoRows {
			return "", nil, fmt.Errorf("%w: object %s", marcherr.ErrNotFound, c)
		}
		return "", nil, fmt.Errorf("%w: get object: %v", marcherr.ErrStoreIO, err)
	}
	return kind, bytes, nil
}

// GetKind loads bytes for a CID, verifying it matches the expected kind.
func (s *Store) GetKind(c cid.CID, wantKind string) ([]byte, error) {
	kind, bytes, err := s.Get(c)
	if err != nil {
		return nil, err
	}
	if kind != wantKind {
		return nil, fmt.Errorf("%w: expected kind %q, got %q for %s", marcherr.ErrCorruptObject, wantKind, kind, c)
	}
	return bytes, nil
}

// NamePut maps (scope, name) to cid, replacing any prior binding.
func (s *Store) NamePut(scope, name string, c cid.CID) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO name_index (scope, name, cid) VALUES (?, ?, ?)`, scope, name, c.Bytes())
	if err != nil {
		return fmt.Errorf("%w: put name: %v", marcherr.ErrStoreIO, err)
	}
	return nil
}

// NameGet resolves (scope, name) to a CID, if bound.
func (s *Store) NameGet(scope, name string) (cid.CID, bool, error) {
	row := s.db.QueryRow(`SELECT cid FROM name_index WHERE scope = ? AND name = ?`, scope, name)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return cid.CID{}, false, nil
		}
		return cid.CID{}, false, fmt.Errorf("%w: get name: %v", marcherr.ErrStoreIO, err)
	}
	c, err := cid.FromSlice(raw)
	if err != nil {
		return cid.CID{}, false, fmt.Errorf("%w: name index cid: %v", marcherr.ErrCorruptObject, err)
	}
	return c, true, nil
}

// NameListEntry is one row returned by NameList.
type NameListEntry struct {
	Name string
	CID  cid.CID
}

// NameList lists all names within scope whose name has the given
// prefix (empty prefix lists everything in scope), sorted by name.
func (s *Store) NameList(scope, prefix string) ([]NameListEntry, error) {
	rows, err := s.db.Query(
		`SELECT name, cid FROM name_index WHERE scope = ? AND name LIKE ? ESCAPE '\' ORDER BY name`,
		scope, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("%w: list names: %v", marcherr.ErrStoreIO, err)
	}
	defer rows.Close()

	var out []NameListEntry
	for rows.Next() {
		var name string
		var raw []byte
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, fmt.Errorf("%w: scan name row: %v", marcherr.ErrStoreIO, err)
		}
		c, err := cid.FromSlice(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: name index cid: %v", marcherr.ErrCorruptObject, err)
		}
		out = append(out, NameListEntry{Name: name, CID: c})
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

// SetEffectDoc records doc as the human documentation for the effect
// at c, replacing any prior text. Doc is excluded from Effect's hashed
// payload (object/effect.go), so this sidecar is its only storage.
func (s *Store) SetEffectDoc(c cid.CID, doc string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO effect_doc (cid, doc) VALUES (?, ?)`, c.Bytes(), doc)
	if err != nil {
		return fmt.Errorf("%w: set effect doc: %v", marcherr.ErrStoreIO, err)
	}
	return nil
}

// EffectDoc returns the documentation recorded for c, if any.
func (s *Store) EffectDoc(c cid.CID) (string, bool, error) {
	row := s.db.QueryRow(`SELECT doc FROM effect_doc WHERE cid = ?`, c.Bytes())
	var doc string
	if err := row.Scan(&doc); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: get effect doc: %v", marcherr.ErrStoreIO, err)
	}
	return doc, true, nil
}

// LoadAllEntry is one row returned by LoadAll.
type LoadAllEntry struct {
	CID   cid.CID
	Bytes []byte
}

// LoadAll returns every object of the given kind.
func (s *Store) LoadAll(kind string) ([]LoadAllEntry, error) {
	rows, err := s.db.Query(`SELECT cid, bytes FROM object WHERE kind = ?`, kind)
	if err != nil {
		return nil, fmt.Errorf("%w: load all: %v", marcherr.ErrStoreIO, err)
	}
	defer rows.Close()

	var out []LoadAllEntry
	for rows.Next() {
		var raw, bytes []byte
		if err := rows.Scan(&raw, &bytes); err != nil {
			return nil, fmt.Errorf("%w: scan object row: %v", marcherr.ErrStoreIO, err)
		}
		c, err := cid.FromSlice(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: object cid: %v", marcherr.ErrCorruptObject, err)
		}
		out = append(out, LoadAllEntry{CID: c, Bytes: bytes})
	}
	return out, rows.Err()
}
