// Package store is the document store behind the delivery pipeline: user
// records, the searchable file index, and batch records. It is optional;
// with driver "none" every dependent feature degrades to a disabled state
// instead of failing the pipeline.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "vaultbot/pkg/logx"
)

var (
	ErrDisabled = errors.New("store disabled")
	ErrNotFound = errors.New("not found")
)

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file
//   - "" or "none": disabled
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// User is created on first interaction and mutated only by admin actions.
type User struct {
	ID       int64
	Name     string
	Premium  bool
	Banned   bool
	JoinedAt time.Time
}

// File is one indexed item of the storage channel. Code is the public
// token; uniqueness on it is what keeps items referenced, never duplicated.
type File struct {
	MsgID     int
	Name      string
	Code      string
	Size      string
	IndexedAt time.Time
}

// Batch is a persisted contiguous range of content ids. Contiguity is a
// construction invariant; it is not re-validated on read.
type Batch struct {
	ID        string
	FirstID   int
	LastID    int
	CreatedAt time.Time
}

// ContentIDs expands the range in ascending order.
func (b Batch) ContentIDs() []int {
	if b.LastID < b.FirstID {
		return nil
	}
	out := make([]int, 0, b.LastID-b.FirstID+1)
	for id := b.FirstID; id <= b.LastID; id++ {
		out = append(out, id)
	}
	return out
}

// Store is the persistence API consumed by the pipeline. All mutating user
// operations rely on the engine's own atomicity (insert-if-absent); no
// additional locking is required by callers.
type Store interface {
	// EnsureUser inserts the user if absent and reports whether it was
	// created. Existing records are left untouched.
	EnsureUser(ctx context.Context, id int64, name string) (created bool, err error)
	User(ctx context.Context, id int64) (User, error)
	SetBanned(ctx context.Context, id int64, banned bool) error
	// DeleteUser removes the record entirely. Unknown ids are a no-op.
	DeleteUser(ctx context.Context, id int64) error
	SetPremium(ctx context.Context, id int64, premium bool) error
	CountUsers(ctx context.Context) (int, error)
	UserIDs(ctx context.Context) ([]int64, error)

	// SaveFile indexes a file if its code is not yet known.
	SaveFile(ctx context.Context, f File) (added bool, err error)
	CountFiles(ctx context.Context) (int, error)
	// SearchFiles matches name substrings case-insensitively, capped at 50.
	SearchFiles(ctx context.Context, query string) ([]File, error)

	// CreateBatch persists the inclusive range and returns the generated id.
	CreateBatch(ctx context.Context, firstID, lastID int) (string, error)
	// Batch returns ErrNotFound for unknown ids.
	Batch(ctx context.Context, id string) (Batch, error)
	// PruneBatches deletes batches older than the cutoff, returning the count.
	PruneBatches(ctx context.Context, olderThan time.Time) (int, error)

	Close() error
}

// Open initializes the configured store. It returns (nil, nil) when storage
// is disabled; callers treat a nil Store as "feature unavailable".
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver {
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
