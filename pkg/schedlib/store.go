package schedlib

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/afero"
	_ "modernc.org/sqlite"
)

// Store is the persistent key-value primitive the cache is built on.
// Implementations must tolerate concurrent use from a single process.
type Store interface {
	// Read returns the bytes stored under key, or os.ErrNotExist if absent.
	Read(key string) ([]byte, error)

	// Write stores value under key, overwriting any previous value.
	Write(key string, value []byte) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error

	// Keys lists every stored key.
	Keys() ([]string, error)
}

// FileStore persists each key as one file in a directory. Keys are
// percent-encoded so resource keys containing '/' or ':' map to safe
// file names. Backed by afero so tests can run against an in-memory fs.
type FileStore struct {
	fs  afero.Fs
	dir string
}

// NewFileStore creates a FileStore rooted at dir, creating it if needed.
func NewFileStore(fs afero.Fs, dir string) (*FileStore, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: cannot create %s: %w", dir, err)
	}
	return &FileStore{fs: fs, dir: dir}, nil
}

func (f *FileStore) path(key string) string {
	return f.dir + string(os.PathSeparator) + url.PathEscape(key)
}

// Read returns the bytes stored under key.
func (f *FileStore) Read(key string) ([]byte, error) {
	b, err := afero.ReadFile(f.fs, f.path(key))
	if os.IsNotExist(err) {
		return nil, os.ErrNotExist
	}
	return b, err
}

// Write stores value under key.
func (f *FileStore) Write(key string, value []byte) error {
	return afero.WriteFile(f.fs, f.path(key), value, 0o644)
}

// Remove deletes key.
func (f *FileStore) Remove(key string) error {
	err := f.fs.Remove(f.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Keys lists every stored key, decoding the file names back to keys.
func (f *FileStore) Keys() ([]string, error) {
	infos, err := afero.ReadDir(f.fs, f.dir)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(infos))
	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}
		key, err := url.PathUnescape(fi.Name())
		if err != nil {
			// Not a file we wrote. Skip it.
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// SQLStore persists key-value pairs in a single SQLite table. It is the
// daemon's default store so cached schedules survive restarts.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore opens (and if necessary initializes) the SQLite database
// at dbPath. Use ":memory:" for an ephemeral store.
func NewSQLStore(dbPath string) (*SQLStore, error) {
	dsn := dbPath
	if dbPath != ":memory:" && !strings.HasPrefix(dbPath, "file:") {
		dsn = "file:" + dbPath
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: cannot open %s: %w", dbPath, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
        key TEXT PRIMARY KEY,
        value BLOB NOT NULL
    )`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: cannot initialize schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Read returns the bytes stored under key.
func (s *SQLStore) Read(key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, os.ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: read %q: %w", key, err)
	}
	return value, nil
}

// Write stores value under key, overwriting any previous value.
func (s *SQLStore) Write(key string, value []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: write %q: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (s *SQLStore) Remove(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlstore: remove %q: %w", key, err)
	}
	return nil
}

// Keys lists every stored key.
func (s *SQLStore) Keys() ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM kv ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list keys: %w", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("sqlstore: scan key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterate keys: %w", err)
	}
	return keys, nil
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*SQLStore)(nil)
)
