package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/roman-kulish/flight-video-sync/internal/telemetry"
)

// Store persists synchronization sessions and their per-frame telemetry rows.
// All operations that write to the database should be considered atomic.
type Store interface {
	// CreateSession registers a new synchronization run and returns its identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - runID: Unique identifier of the run, as assigned to the sync bundle
	//   - meta: Video and window description needed to re-open the frames
	//   - config: Optional run configuration. Can be string, []byte, or JSON-serializable object
	//
	// Returns:
	//   - sessionID: Unique identifier for the created session
	//   - error: If session creation fails or context is cancelled
	CreateSession(ctx context.Context, runID uuid.UUID, meta SessionMeta, config any) (sessionID int64, err error)

	// Session retrieves a specific session by its ID.
	//
	// Returns:
	//   - session: Pointer to session data
	//   - error: If retrieval fails, the session does not exist or context is cancelled
	Session(ctx context.Context, id int64) (session *Session, err error)

	// Sessions returns all sessions stored in the database, ordered by start time.
	Sessions(ctx context.Context) (sessions []*Session, err error)

	// StoreBundle saves every per-frame record of a provider for a session.
	// All rows are stored in a single transaction.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - sessionID: ID of the session the rows belong to
	//   - p: Per-frame telemetry, usually a sync bundle
	//
	// Returns:
	//   - error: If storage fails or context is cancelled
	StoreBundle(ctx context.Context, sessionID int64, p telemetry.Provider) error

	// ReadRows creates a reader over the stored rows of a session, ordered by
	// frame index. The reader must be closed after use.
	//
	// Returns ErrNoData if the session has no rows in the requested range.
	ReadRows(ctx context.Context, sessionID int64, opts ...ReaderOption) (RowReader, error)

	// Close releases all database connections and resources.
	// After Close is called, the store instance cannot be reused.
	// It is safe to call Close multiple times.
	Close() error
}
