// Package buildcache memoizes a project's lowered bytecode behind a
// content hash, so an unchanged set of source files skips lexing,
// parsing, lowering, and type inference entirely. The cache lives in
// any database/sql-compatible store; which one is a deployment choice,
// not a code one, so every driver this project might run against is
// registered and Open just needs a driver name and DSN.
package buildcache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"nettle/internal/ir"
)

// Default is the driver Open uses when a caller has no manifest
// override: a pure-Go sqlite, so a fresh checkout needs no cgo
// toolchain to get a working cache.
const Default = "sqlite"

// Cache wraps a database/sql handle holding one table, build_cache.
type Cache struct {
	db     *sql.DB
	driver string
}

// Open connects to driver/dsn and ensures the build_cache table exists.
func Open(driver, dsn string) (*Cache, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("buildcache: open %s: %w", driver, err)
	}
	c := &Cache{db: db, driver: driver}
	if err := c.init(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) init() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS build_cache (
			content_hash TEXT PRIMARY KEY,
			build_id     TEXT NOT NULL,
			module_json  TEXT NOT NULL,
			created_at   TIMESTAMP NOT NULL
		)
	`)
	return err
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error { return c.db.Close() }

// ContentHash hashes a project's source files in order, so reordering
// or editing any file changes the result.
func ContentHash(sources []string) string {
	h := sha256.New()
	for _, s := range sources {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Lookup returns the module cached under hash, if any.
func (c *Cache) Lookup(ctx context.Context, hash string) (*ir.Module, bool, error) {
	row := c.db.QueryRowContext(ctx, c.rebind(`SELECT module_json FROM build_cache WHERE content_hash = ?`), hash)

	var blob string
	if err := row.Scan(&blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("buildcache: lookup: %w", err)
	}

	var m ir.Module
	if err := json.Unmarshal([]byte(blob), &m); err != nil {
		return nil, false, fmt.Errorf("buildcache: decode cached module: %w", err)
	}
	return &m, true, nil
}

// Store records m under hash, replacing any previous entry, and
// returns a freshly minted build id identifying this run.
func (c *Cache) Store(ctx context.Context, hash string, m *ir.Module) (string, error) {
	blob, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("buildcache: encode module: %w", err)
	}
	id := uuid.NewString()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("buildcache: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, c.rebind(`DELETE FROM build_cache WHERE content_hash = ?`), hash); err != nil {
		return "", fmt.Errorf("buildcache: evict stale entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx, c.rebind(`
		INSERT INTO build_cache (content_hash, build_id, module_json, created_at)
		VALUES (?, ?, ?, ?)
	`), hash, id, string(blob), time.Now()); err != nil {
		return "", fmt.Errorf("buildcache: store: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("buildcache: commit: %w", err)
	}
	return id, nil
}

// rebind rewrites ?-style placeholders for drivers that don't accept
// them: lib/pq wants $1, $2, ...; every other registered driver
// (sqlite, mysql, mssql) accepts ? natively.
func (c *Cache) rebind(query string) string {
	if c.driver != "postgres" {
		return query
	}
	out := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, '$')
			out = append(out, []byte(fmt.Sprintf("%d", n))...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}
