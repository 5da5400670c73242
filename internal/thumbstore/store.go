// Package thumbstore implements the persistent, on-disk PNG thumbnail
// cache keyed by (path, mtime, size), with versioned schema migrations
// and bounded retry on transient lock contention.
package thumbstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/justyntemme/pixcore/internal/debug"
)

// Stat is the filesystem signature a Record is validated against.
type Stat struct {
	MTime int64
	Size  int64
}

// Box is a thumbnail target size in pixels.
type Box struct {
	W, H int
}

// fits reports whether a stored thumbnail box meets or exceeds a
// requested box on both axes.
func (b Box) fits(requested Box) bool {
	return b.W >= requested.W && b.H >= requested.H
}

// Record is one stored thumbnail row (schema v2).
type Record struct {
	Path      string
	Stat      Stat
	OrigW     int
	OrigH     int
	ThumbW    int
	ThumbH    int
	PNG       []byte
	CreatedAt int64
}

// Item is one lookup key for GetBatch.
type Item struct {
	Path string
	Stat Stat
	Box  Box
}

// Result is GetBatch's per-item outcome.
type Result struct {
	Hit    bool
	PNG    []byte
	OrigW  int
	OrigH  int
	ThumbW int
	ThumbH int

	mtime int64
	size  int64
}

type opType int

const (
	opGet opType = iota
	opGetBatch
	opUpsert
	opCleanup
	opVacuum
	opCount
)

type request struct {
	op       opType
	item     Item
	items    []Item
	record   Record
	days     int
	response chan response
}

type response struct {
	result  Result
	results []Result
	count   int64
	retries int
	err     error
}

// Store is a single-file thumbnail database, one per source folder.
// All public methods are safe to call from any goroutine; mutations are
// serialized through a single writer lane.
type Store struct {
	conn    *sql.DB
	path    string
	metrics MetricsSink

	requests chan request
	done     chan struct{}
}

// Open opens (creating if necessary) the thumbnail database at dbPath,
// runs any pending schema migrations, and starts the writer lane.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, newErr(KindWriteFailed, err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, newErr(KindCorrupt, err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, newErr(KindCorrupt, err)
	}
	if _, err := conn.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		conn.Close()
		return nil, newErr(KindCorrupt, err)
	}

	if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL);`); err != nil {
		conn.Close()
		return nil, newErr(KindCorrupt, err)
	}

	s := &Store{
		conn:     conn,
		path:     dbPath,
		requests: make(chan request, 16),
		done:     make(chan struct{}),
	}

	if err := s.migrateSchema(); err != nil {
		conn.Close()
		return nil, err
	}

	hideFile(dbPath) // best-effort, failure is non-fatal

	if info, err := os.Stat(dbPath); err == nil {
		debug.Log(debug.THUMB, "opened db %s (%s)", dbPath, dbSizeHuman(info.Size()))
	}

	go s.run()
	return s, nil
}

// SetMetrics installs a sink for per-operation and migration metrics.
func (s *Store) SetMetrics(sink MetricsSink) { s.metrics = sink }

func (s *Store) run() {
	for req := range s.requests {
		switch req.op {
		case opGet:
			res, retries, err := s.handleGet(req.item)
			req.response <- response{result: res, retries: retries, err: err}
		case opGetBatch:
			res, err := s.handleGetBatch(req.items)
			req.response <- response{results: res, err: err}
		case opUpsert:
			retries, err := s.handleUpsert(req.record)
			req.response <- response{retries: retries, err: err}
		case opCleanup:
			retries, err := s.handleCleanup(req.days)
			req.response <- response{retries: retries, err: err}
		case opVacuum:
			err := s.handleVacuum()
			req.response <- response{err: err}
		case opCount:
			n, err := s.handleCount()
			req.response <- response{count: n, err: err}
		}
	}
	close(s.done)
}

func (s *Store) call(ctx context.Context, req request) (response, error) {
	req.response = make(chan response, 1)
	select {
	case s.requests <- req:
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
	select {
	case resp := <-req.response:
		return resp, nil
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
}

// Get returns the stored thumbnail bytes for path iff its stat matches
// and the stored box meets or exceeds requested.
func (s *Store) Get(ctx context.Context, path string, stat Stat, requested Box) (Result, error) {
	start := time.Now()
	resp, err := s.call(ctx, request{op: opGet, item: Item{Path: path, Stat: stat, Box: requested}})
	if err != nil {
		return Result{}, err
	}
	s.recordOp("get", start, resp.retries)
	return resp.result, resp.err
}

// GetBatch resolves every item with a single query, preserving input
// order.
func (s *Store) GetBatch(ctx context.Context, items []Item) ([]Result, error) {
	start := time.Now()
	resp, err := s.call(ctx, request{op: opGetBatch, items: items})
	if err != nil {
		return nil, err
	}
	s.recordOp("get_batch", start, 0)
	return resp.results, resp.err
}

// Upsert writes or replaces the record for rec.Path.
func (s *Store) Upsert(ctx context.Context, rec Record) error {
	start := time.Now()
	resp, err := s.call(ctx, request{op: opUpsert, record: rec})
	if err != nil {
		return err
	}
	s.recordOp("upsert", start, resp.retries)
	return resp.err
}

// CleanupOlderThan deletes rows created more than the given number of
// days ago.
func (s *Store) CleanupOlderThan(ctx context.Context, days int) error {
	start := time.Now()
	resp, err := s.call(ctx, request{op: opCleanup, days: days})
	if err != nil {
		return err
	}
	s.recordOp("cleanup_older_than", start, resp.retries)
	return resp.err
}

// Vacuum reclaims free space in the database file.
func (s *Store) Vacuum(ctx context.Context) error {
	start := time.Now()
	resp, err := s.call(ctx, request{op: opVacuum})
	if err != nil {
		return err
	}
	s.recordOp("vacuum", start, 0)
	return resp.err
}

// Count returns the number of stored thumbnail rows.
func (s *Store) Count(ctx context.Context) (int64, error) {
	start := time.Now()
	resp, err := s.call(ctx, request{op: opCount})
	if err != nil {
		return 0, err
	}
	s.recordOp("count", start, 0)
	return resp.count, resp.err
}

// GetBytes is a thin read-only façade for external consumers (the
// folder model) that don't need the orig dims or miss/hit wrapper.
func (s *Store) GetBytes(ctx context.Context, path string, stat Stat, requested Box) ([]byte, bool, error) {
	res, err := s.Get(ctx, path, stat, requested)
	if err != nil {
		return nil, false, err
	}
	return res.PNG, res.Hit, nil
}

// Close stops the writer lane and closes the underlying database.
func (s *Store) Close() error {
	close(s.requests)
	<-s.done
	return s.conn.Close()
}

func (s *Store) handleGet(item Item) (Result, int, error) {
	var row struct {
		mtime, size          int64
		origW, origH, tw, th int
		png                  []byte
	}
	retries, err := withRetry(context.Background(), func() error {
		r := s.conn.QueryRow(`SELECT mtime, size, orig_w, orig_h, thumb_w, thumb_h, png_bytes FROM thumbnails WHERE path = ?`, item.Path)
		return r.Scan(&row.mtime, &row.size, &row.origW, &row.origH, &row.tw, &row.th, &row.png)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return Result{Hit: false}, retries, nil
		}
		return Result{}, retries, newErr(KindCorrupt, err)
	}

	if row.mtime != item.Stat.MTime || row.size != item.Stat.Size {
		return Result{Hit: false}, retries, nil
	}
	if !(Box{W: row.tw, H: row.th}).fits(item.Box) {
		return Result{Hit: false}, retries, nil
	}
	return Result{Hit: true, PNG: row.png, OrigW: row.origW, OrigH: row.origH}, retries, nil
}

// handleGetBatch resolves every item with a single query (IN clause
// over the requested paths), never issuing N round trips.
func (s *Store) handleGetBatch(items []Item) ([]Result, error) {
	results := make([]Result, len(items))
	if len(items) == 0 {
		return results, nil
	}

	paths := make([]any, len(items))
	placeholders := ""
	for i, it := range items {
		paths[i] = it.Path
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
	}

	rows, err := s.conn.Query(fmt.Sprintf(`SELECT path, mtime, size, orig_w, orig_h, thumb_w, thumb_h, png_bytes FROM thumbnails WHERE path IN (%s)`, placeholders), paths...)
	if err != nil {
		return nil, newErr(KindCorrupt, err)
	}
	defer rows.Close()

	byPath := make(map[string]Result, len(items))
	for rows.Next() {
		var path string
		var mtime, size int64
		var origW, origH, tw, th int
		var png []byte
		if err := rows.Scan(&path, &mtime, &size, &origW, &origH, &tw, &th, &png); err != nil {
			return nil, newErr(KindCorrupt, err)
		}
		byPath[path] = Result{Hit: true, PNG: png, OrigW: origW, OrigH: origH, ThumbW: tw, ThumbH: th, mtime: mtime, size: size}
	}

	for i, it := range items {
		rec, ok := byPath[it.Path]
		if !ok || rec.mtime != it.Stat.MTime || rec.size != it.Stat.Size || !(Box{W: rec.ThumbW, H: rec.ThumbH}).fits(it.Box) {
			results[i] = Result{Hit: false}
			continue
		}
		results[i] = Result{Hit: true, PNG: rec.PNG, OrigW: rec.OrigW, OrigH: rec.OrigH}
	}
	return results, nil
}

func (s *Store) handleUpsert(rec Record) (int, error) {
	retries, err := withRetry(context.Background(), func() error {
		_, err := s.conn.Exec(`
		INSERT INTO thumbnails (path, mtime, size, orig_w, orig_h, thumb_w, thumb_h, png_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			mtime=excluded.mtime, size=excluded.size, orig_w=excluded.orig_w, orig_h=excluded.orig_h,
			thumb_w=excluded.thumb_w, thumb_h=excluded.thumb_h, png_bytes=excluded.png_bytes, created_at=excluded.created_at
		`, rec.Path, rec.Stat.MTime, rec.Stat.Size, rec.OrigW, rec.OrigH, rec.ThumbW, rec.ThumbH, rec.PNG, rec.CreatedAt)
		return err
	})
	if err != nil {
		return retries, newErr(KindWriteFailed, err)
	}
	return retries, nil
}

func (s *Store) handleCleanup(days int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -days).Unix()
	retries, err := withRetry(context.Background(), func() error {
		_, err := s.conn.Exec(`DELETE FROM thumbnails WHERE created_at < ?`, cutoff)
		return err
	})
	if err != nil {
		return retries, newErr(KindWriteFailed, err)
	}
	return retries, nil
}

func (s *Store) handleVacuum() error {
	_, err := s.conn.Exec(`VACUUM;`)
	if err != nil {
		return newErr(KindWriteFailed, err)
	}
	return nil
}

func (s *Store) handleCount() (int64, error) {
	var n int64
	row := s.conn.QueryRow(`SELECT COUNT(*) FROM thumbnails`)
	if err := row.Scan(&n); err != nil {
		return 0, newErr(KindCorrupt, err)
	}
	return n, nil
}
