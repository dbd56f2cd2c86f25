package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/flight-video-sync/internal/telemetry"
)

const defaultBatchSize = 512

// ErrNoData indicates that no rows exist for the given parameters
var ErrNoData = errors.New("no data available")

// RowReader provides an iterator-based interface for reading the stored
// per-frame telemetry of a session, in frame index order.
type RowReader interface {
	// Session returns the session this reader is accessing
	Session() *Session

	// Len returns the number of rows the reader will produce
	Len() int

	// Next advances the iterator and returns true if there is another row
	// to read, false when the iteration is complete or if an error occurred.
	Next(context.Context) bool

	// Current returns the current row in the iteration.
	// If called after Next() returns false, the behavior is undefined.
	Current() *telemetry.Telemetry

	// Error returns any error that occurred during iteration.
	Error() error

	// Close releases any resources associated with the reader.
	Close() error
}

// ReaderOption configures a SqliteRowReader
type ReaderOption func(*SqliteRowReader)

// WithIndexRange restricts the reader to frame indices [lo, hi)
func WithIndexRange(lo, hi int) ReaderOption {
	return func(r *SqliteRowReader) {
		r.lo = lo
		r.hi = hi
	}
}

// WithBatchSize sets the number of rows fetched per query
func WithBatchSize(n int) ReaderOption {
	return func(r *SqliteRowReader) {
		r.batchSize = n
	}
}

// SqliteRowReader implements RowReader for SQLite database backend. Rows are
// paged by frame index, so no cursor stays open between batches.
type SqliteRowReader struct {
	db *sql.DB

	sessionID int64
	session   *Session
	lo, hi    int
	batchSize int
	total     int

	stmt    *sql.Stmt
	batch   []*telemetry.Telemetry
	next    int // First frame index of the next batch
	current *telemetry.Telemetry
	done    bool
	err     error
}

func newSqliteRowReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...ReaderOption) (*SqliteRowReader, error) {
	r := &SqliteRowReader{
		db:        db,
		sessionID: sessionID,
		lo:        0,
		hi:        math.MaxInt32,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.init(ctx); err != nil {
		if r.stmt != nil {
			_ = r.stmt.Close()
		}
		if errors.Is(err, ErrNoData) {
			return nil, err
		}
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return r, nil
}

func (r *SqliteRowReader) init(ctx context.Context) error {
	if r.db == nil {
		return errors.New("database connection required")
	}
	if r.sessionID <= 0 {
		return errors.New("session ID required")
	}
	if r.batchSize <= 0 {
		return fmt.Errorf("invalid batch size: %d", r.batchSize)
	}
	if r.lo < 0 || r.hi <= r.lo {
		return fmt.Errorf("invalid index range [%d, %d)", r.lo, r.hi)
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading session", fn: r.loadSession},
		{msg: "counting rows", fn: r.countRows},
		{msg: "preparing query", fn: r.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (r *SqliteRowReader) loadSession(ctx context.Context) (err error) {
	r.session, err = loadSession(ctx, r.db, r.sessionID)
	return
}

func (r *SqliteRowReader) countRows(ctx context.Context) error {
	if err := r.db.QueryRowContext(ctx, countFramesSQL, r.sessionID, r.lo, r.hi).Scan(&r.total); err != nil {
		return fmt.Errorf("scanning count: %w", err)
	}
	if r.total == 0 {
		return fmt.Errorf("%w: session %d, frames [%d, %d)", ErrNoData, r.sessionID, r.lo, r.hi)
	}
	return nil
}

func (r *SqliteRowReader) initQuery(ctx context.Context) (err error) {
	if r.stmt, err = r.db.PrepareContext(ctx, selectFramesSQL); err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	r.next = r.lo
	return nil
}

// fetch loads the next batch of rows
func (r *SqliteRowReader) fetch(ctx context.Context) (err error) {
	rows, err := r.stmt.QueryContext(ctx, r.sessionID, r.next, r.hi, r.batchSize)
	if err != nil {
		return fmt.Errorf("querying frames: %w", err)
	}
	defer closeWithError(rows, &err)

	r.batch = r.batch[:0]
	for rows.Next() {
		var d frameData
		if err = rows.Scan(&d.Index, &d.FrameTime, &d.Elapsed, &d.Altitude, &d.Roll, &d.Pitch, &d.Yaw); err != nil {
			return fmt.Errorf("scanning frame: %w", err)
		}
		r.batch = append(r.batch, d.toTelemetry())
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("iterating frames: %w", err)
	}

	if len(r.batch) < r.batchSize {
		r.done = true
	}
	if len(r.batch) > 0 {
		r.next = r.batch[len(r.batch)-1].Index + 1
	}
	return nil
}

func (r *SqliteRowReader) Session() *Session {
	return r.session
}

func (r *SqliteRowReader) Len() int {
	return r.total
}

func (r *SqliteRowReader) Next(ctx context.Context) bool {
	if r.err != nil || r.stmt == nil {
		return false
	}

	select {
	case <-ctx.Done():
		r.err = ctx.Err()
		return false
	default:
	}

	if len(r.batch) == 0 {
		if r.done {
			return false
		}
		if r.err = r.fetch(ctx); r.err != nil {
			return false
		}
		if len(r.batch) == 0 {
			return false
		}
	}

	r.current = r.batch[0]
	r.batch = r.batch[1:]
	return true
}

func (r *SqliteRowReader) Current() *telemetry.Telemetry {
	return r.current
}

func (r *SqliteRowReader) Error() error {
	return r.err
}

func (r *SqliteRowReader) Close() error {
	if r.stmt != nil {
		err := r.stmt.Close()
		r.stmt = nil
		r.batch = nil
		r.current = nil
		return err
	}
	return nil
}

// CollectRows reads every remaining row of a reader into memory
func CollectRows(ctx context.Context, r RowReader) (Rows, error) {
	rows := make(Rows, 0, r.Len())
	for r.Next(ctx) {
		rows = append(rows, r.Current())
	}
	if err := r.Error(); err != nil {
		return nil, err
	}
	return rows, nil
}
