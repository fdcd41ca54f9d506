// Package poolcache is the concurrent, LRU-evicting map from database
// name to connection pool that every other component acquires
// connections through. It also owns the admin pool used for
// cluster-wide operations (database creation, existence checks,
// listing) and the cluster-level identifier grammar.
package poolcache

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cloudflare/backoff"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/gwerrors"
)

// Options configures admission policy and timeouts, mirroring the
// MAX_CONNECTIONS_PER_POOL / MAX_TOTAL_CONNECTIONS / POOL_IDLE_TIMEOUT_SECS
// / POOL_MAX_LIFETIME_SECS environment keys.
type Options struct {
	MaxConnsPerPool int32
	MaxTotalConns   int32
	IdleTimeout     time.Duration // default 30m
	MaxLifetime     time.Duration // default 1h
	CleanupInterval time.Duration // default 5m
	AcquireTimeout  time.Duration // default 5s
	CreateTimeout   time.Duration // default 5s

	Logger *slog.Logger
}

func (o *Options) setDefaults() {
	if o.IdleTimeout == 0 {
		o.IdleTimeout = 30 * time.Minute
	}
	if o.MaxLifetime == 0 {
		o.MaxLifetime = time.Hour
	}
	if o.CleanupInterval == 0 {
		o.CleanupInterval = 5 * time.Minute
	}
	if o.AcquireTimeout == 0 {
		o.AcquireTimeout = 5 * time.Second
	}
	if o.CreateTimeout == 0 {
		o.CreateTimeout = 5 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

type entry struct {
	pool     *pgxpool.Pool
	database string
	maxConns int32
	lastUsed time.Time
}

// Cache is the per-database pool map plus the admin pool.
type Cache struct {
	mu               sync.Mutex
	pools            map[string]*entry
	totalConnections int64

	adminPool   *pgxpool.Pool
	baseConnStr string
	opts        Options

	stopCleanup context.CancelFunc
	cleanupDone chan struct{}
}

// New creates the pool cache and its admin pool, verifying the admin
// pool with a ping (retried with bounded backoff) before returning —
// startup fails if the cluster cannot be reached at all.
func New(ctx context.Context, baseConnStr string, opts Options) (*Cache, error) {
	opts.setDefaults()

	c := &Cache{
		pools:       make(map[string]*entry),
		baseConnStr: baseConnStr,
		opts:        opts,
	}

	pool, err := newPingedPool(ctx, baseConnStr, 2, opts)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindConnectionFailed, err, "admin pool failed to connect at startup")
	}
	c.adminPool = pool

	return c, nil
}

// newPingedPool creates a pool against connStr and retries the initial
// ping with exponential backoff, matching the few-second timeouts spec
// §4.4 requires of every potentially-blocking operation.
func newPingedPool(ctx context.Context, connStr string, maxConns int32, opts Options) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnLifetime = opts.MaxLifetime
	cfg.MaxConnIdleTime = opts.IdleTimeout

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}

	b := backoff.New(opts.CreateTimeout, 100*time.Millisecond)
	var pingErr error
	for attempt := 0; attempt < 3; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, opts.CreateTimeout)
		pingErr = pool.Ping(pingCtx)
		cancel()
		if pingErr == nil {
			return pool, nil
		}
		time.Sleep(b.Duration())
	}
	pool.Close()
	return nil, fmt.Errorf("ping failed after retries: %w", pingErr)
}

// AdminPool returns the pool used for cluster-wide operations.
func (c *Cache) AdminPool() *pgxpool.Pool {
	return c.adminPool
}

// databaseURLFor replaces the database name segment (the substring after
// the final "/") of base with database, preserving query parameters.
func databaseURLFor(base, database string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Path = "/" + database
	return u.String(), nil
}

// GetPool returns the pool for database, creating it on demand subject
// to the admission policy, and refreshes last_used on every lookup.
func (c *Cache) GetPool(ctx context.Context, database string) (*pgxpool.Pool, error) {
	if !IsValidIdentifier(database) {
		return nil, gwerrors.New(gwerrors.KindInvalidRequest, "invalid database identifier: %q", database)
	}

	c.mu.Lock()
	if e, ok := c.pools[database]; ok {
		e.lastUsed = time.Now()
		pool := e.pool
		c.mu.Unlock()
		return pool, nil
	}
	c.mu.Unlock()

	return c.createPool(ctx, database)
}

func (c *Cache) createPool(ctx context.Context, database string) (*pgxpool.Pool, error) {
	connStr, err := databaseURLFor(c.baseConnStr, database)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindInternal, err, "building connection string for %s", database)
	}

	c.mu.Lock()
	// Another goroutine may have created it while we built the conn string.
	if e, ok := c.pools[database]; ok {
		e.lastUsed = time.Now()
		pool := e.pool
		c.mu.Unlock()
		return pool, nil
	}

	maxConns := c.opts.MaxConnsPerPool
	if c.totalConnections+int64(maxConns) > int64(c.opts.MaxTotalConns) {
		if !c.evictLRULocked() {
			c.mu.Unlock()
			return nil, gwerrors.New(gwerrors.KindPoolExhausted, "global connection budget exhausted and no idle pool to evict")
		}
	}
	c.mu.Unlock()

	pool, err := newPingedPool(ctx, connStr, maxConns, c.opts)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindConnectionFailed, err, "creating pool for %s", database).WithDatabase(database)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.pools[database]; ok {
		// Lost the race: another goroutine created it first. Keep theirs.
		pool.Close()
		e.lastUsed = time.Now()
		return e.pool, nil
	}
	c.pools[database] = &entry{pool: pool, database: database, maxConns: maxConns, lastUsed: time.Now()}
	c.totalConnections += int64(maxConns)
	c.opts.Logger.Info("pool created", "database", database, "total_connections", c.totalConnections)
	return pool, nil
}

// pickLRULocked returns the name of the least-recently-used entry, or ""
// if the cache holds no pools. Caller must hold c.mu.
func (c *Cache) pickLRULocked() string {
	var lruName string
	var lruTime time.Time
	found := false
	for name, e := range c.pools {
		if !found || e.lastUsed.Before(lruTime) {
			lruName = name
			lruTime = e.lastUsed
			found = true
		}
	}
	return lruName
}

// evictLRULocked removes the least-recently-used entry. Caller must hold c.mu.
func (c *Cache) evictLRULocked() bool {
	lruName := c.pickLRULocked()
	if lruName == "" {
		return false
	}
	e := c.pools[lruName]
	e.pool.Close()
	delete(c.pools, lruName)
	c.totalConnections -= int64(e.maxConns)
	c.opts.Logger.Info("pool evicted (LRU)", "database", lruName)
	return true
}

// CleanupIdle removes every pool whose last_used age exceeds the idle
// timeout and returns how many were removed. Called by the background
// ticker started by Start, and directly by tests.
func (c *Cache) CleanupIdle(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for name, e := range c.pools {
		if now.Sub(e.lastUsed) > c.opts.IdleTimeout {
			e.pool.Close()
			delete(c.pools, name)
			c.totalConnections -= int64(e.maxConns)
			removed++
			c.opts.Logger.Info("pool evicted (idle)", "database", name)
		}
	}
	return removed
}

// Start launches the idle-cleanup ticker goroutine. Stop (via ctx
// cancellation or Close) joins it.
func (c *Cache) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	c.stopCleanup = cancel
	c.cleanupDone = make(chan struct{})

	go func() {
		defer close(c.cleanupDone)
		ticker := time.NewTicker(c.opts.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-cctx.Done():
				return
			case <-ticker.C:
				c.CleanupIdle(time.Now())
			}
		}
	}()
}

// Close stops the cleanup goroutine (if started) and closes every pool,
// including the admin pool.
func (c *Cache) Close() {
	if c.stopCleanup != nil {
		c.stopCleanup()
		<-c.cleanupDone
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for name, e := range c.pools {
		e.pool.Close()
		delete(c.pools, name)
	}
	c.totalConnections = 0
	if c.adminPool != nil {
		c.adminPool.Close()
	}
}

// DropPool closes and removes database's pool entry, if any, without
// touching the admin pool. Used before DROP DATABASE so no lingering
// connection blocks the drop.
func (c *Cache) DropPool(database string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.pools[database]; ok {
		e.pool.Close()
		delete(c.pools, database)
		c.totalConnections -= int64(e.maxConns)
	}
}

// Stats is a snapshot for the /health endpoint.
type Stats struct {
	ActivePools      int   `json:"active_pools"`
	TotalConnections int64 `json:"total_connections"`
	MaxTotal         int32 `json:"max_total_connections"`
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{ActivePools: len(c.pools), TotalConnections: c.totalConnections, MaxTotal: c.opts.MaxTotalConns}
}

// DatabaseExists checks pg_database via the admin pool.
func (c *Cache) DatabaseExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := c.adminPool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", name).Scan(&exists)
	if err != nil {
		return false, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "checking database existence")
	}
	return exists, nil
}

// CreateDatabase validates name and issues CREATE DATABASE against the
// admin pool. Identifiers are not parameterizable in DDL, so validation
// happens before any string formatting.
func (c *Cache) CreateDatabase(ctx context.Context, name string) error {
	if !IsValidIdentifier(name) {
		return gwerrors.New(gwerrors.KindInvalidRequest, "invalid database identifier: %q", name)
	}
	_, err := c.adminPool.Exec(ctx, fmt.Sprintf(`CREATE DATABASE "%s"`, name))
	if err != nil {
		return gwerrors.Wrap(gwerrors.KindMigrationFailed, err, "creating database %s", name).WithDatabase(name)
	}
	return nil
}

// DropDatabase drops database's pool (if cached) then issues DROP
// DATABASE IF EXISTS against the admin pool.
func (c *Cache) DropDatabase(ctx context.Context, name string) error {
	if !IsValidIdentifier(name) {
		return gwerrors.New(gwerrors.KindInvalidRequest, "invalid database identifier: %q", name)
	}
	c.DropPool(name)
	_, err := c.adminPool.Exec(ctx, fmt.Sprintf(`DROP DATABASE IF EXISTS "%s"`, name))
	if err != nil {
		return gwerrors.Wrap(gwerrors.KindQueryFailed, err, "dropping database %s", name).WithDatabase(name)
	}
	return nil
}

// ListDatabasesForPlatform lists databases whose name has the
// "{platform}_" prefix, matching the legacy/registry naming convention.
func (c *Cache) ListDatabasesForPlatform(ctx context.Context, platform string) ([]string, error) {
	rows, err := c.adminPool.Query(ctx, "SELECT datname FROM pg_database WHERE datname LIKE $1 ORDER BY datname", platform+"\\_%")
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "listing databases for platform %s", platform)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, gwerrors.Wrap(gwerrors.KindQueryFailed, err, "scanning database name")
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// FormatDatabaseName builds "{platform}_{schema}_{databaseID}", leaving
// out whichever of schema and databaseID is empty; with both empty it
// gives the legacy "{platform}_main". The parts are joined with "_" and
// lowercased, and no other character is changed, so callers must still
// validate the result with IsValidIdentifier before using it in DDL.
func FormatDatabaseName(platform, schema, databaseID string) string {
	parts := []string{platform}
	if schema != "" {
		parts = append(parts, schema)
	}
	if databaseID != "" {
		parts = append(parts, databaseID)
	} else if schema == "" {
		parts = append(parts, "main")
	}
	return strings.ToLower(strings.Join(parts, "_"))
}
