package storage

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"github.com/httprunner/DeviceAgent/internal/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	_ "modernc.org/sqlite"
)

const (
	defaultDBDirName  = ".deviceagent"
	defaultDBFileName = "hashes.sqlite"
)

var (
	hashCacheOnce sync.Once
	hashCacheInst *HashCache
)

// HashCache persists host file content hashes keyed by (path, size,
// mtime), so repeated pushes of an unchanged tree skip re-hashing. It is
// purely an optimization: lookups that miss, and a cache that failed to
// open, both fall back to hashing.
type HashCache struct {
	mu     sync.Mutex
	db     *sql.DB
	lookup *sql.Stmt
	store  *sql.Stmt
}

// AcquireHashCache returns the process-wide hash cache, or nil when it is
// disabled or could not be opened.
func AcquireHashCache() *HashCache {
	hashCacheOnce.Do(func() {
		if config.Bool("DEVICEAGENT_DISABLE_HASH_CACHE", false) {
			return
		}
		cache, err := openHashCache()
		if err != nil {
			log.Warn().Err(err).Msg("deviceagent: host hash cache unavailable")
			return
		}
		hashCacheInst = cache
	})
	return hashCacheInst
}

// ResolveDatabasePath returns the absolute path of the hash cache database,
// creating the parent directory if necessary.
func ResolveDatabasePath() (string, error) {
	if custom := config.String("DEVICEAGENT_SQLITE_PATH", ""); custom != "" {
		if err := os.MkdirAll(filepath.Dir(custom), 0o755); err != nil {
			return "", errors.Wrap(err, "storage: create custom db dir failed")
		}
		return custom, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "storage: locate user home failed")
	}
	dir := filepath.Join(home, defaultDBDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "storage: create dir %s failed", dir)
	}
	return filepath.Join(dir, defaultDBFileName), nil
}

func openHashCache() (*HashCache, error) {
	path, err := ResolveDatabasePath()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "storage: open hash cache db failed")
	}
	if err := configureSQLite(db); err != nil {
		db.Close()
		return nil, err
	}
	table := config.String("DEVICEAGENT_HASH_CACHE_TABLE", "host_hashes")
	if err := ensureHashSchema(db, table); err != nil {
		db.Close()
		return nil, err
	}
	lookup, err := db.Prepare(
		`SELECT md5 FROM ` + table + ` WHERE path = ? AND size = ? AND mtime_ns = ?`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "storage: prepare hash lookup failed")
	}
	store, err := db.Prepare(
		`INSERT INTO ` + table + ` (path, size, mtime_ns, md5) VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET size = excluded.size,
		   mtime_ns = excluded.mtime_ns, md5 = excluded.md5`)
	if err != nil {
		lookup.Close()
		db.Close()
		return nil, errors.Wrap(err, "storage: prepare hash upsert failed")
	}
	return &HashCache{db: db, lookup: lookup, store: store}, nil
}

func configureSQLite(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA temp_store=MEMORY;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return errors.Wrapf(err, "storage: execute %s failed", pragma)
		}
	}
	db.SetMaxOpenConns(1)
	return nil
}

func ensureHashSchema(db *sql.DB, table string) error {
	create := `CREATE TABLE IF NOT EXISTS ` + table + ` (
		path TEXT PRIMARY KEY,
		size INTEGER NOT NULL,
		mtime_ns INTEGER NOT NULL,
		md5 TEXT NOT NULL
	)`
	if _, err := db.Exec(create); err != nil {
		return errors.Wrap(err, "storage: create hash cache table failed")
	}
	return nil
}

// Lookup returns the cached hash for path when size and mtime still match.
func (c *HashCache) Lookup(path string, size, mtimeNS int64) (string, bool) {
	if c == nil {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var hash string
	err := c.lookup.QueryRow(path, size, mtimeNS).Scan(&hash)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Debug().Err(err).Str("path", path).Msg("deviceagent: hash cache lookup failed")
		}
		return "", false
	}
	return hash, true
}

// Store records the hash for path at the given size/mtime.
func (c *HashCache) Store(path string, size, mtimeNS int64, hash string) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.store.Exec(path, size, mtimeNS, hash)
	return errors.Wrap(err, "storage: hash cache store failed")
}

// Close releases the underlying database handle.
func (c *HashCache) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lookup != nil {
		c.lookup.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// ResetHashCacheForTest drops the singleton so tests can point
// DEVICEAGENT_SQLITE_PATH at a scratch database.
func ResetHashCacheForTest() {
	if hashCacheInst != nil {
		hashCacheInst.Close()
	}
	hashCacheInst = nil
	hashCacheOnce = sync.Once{}
}
