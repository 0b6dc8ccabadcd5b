// Package journal records security and robustness incidents observed by
// eventipc agents: frames that failed authentication, frames that did not
// parse, handler failures and failed connects.
//
// The journal never stores message contents, only metadata about the
// incident.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind classifies an incident.
type Kind string

// Incident kinds.
const (
	KindTampered      Kind = "tampered"
	KindMalformed     Kind = "malformed"
	KindHandlerFailed Kind = "handler_failed"
	KindConnectFailed Kind = "connect_failed"
)

// Incident is one journal entry.
type Incident struct {
	ID      string
	Kind    Kind
	Role    string // "client" or "server"
	AgentID string
	Event   string // empty when the frame never decoded
	Detail  string
	Size    int // frame size in bytes, when relevant
	At      time.Time
}

// Store persists incidents.
// Implementations must be safe for concurrent use.
type Store interface {
	// Record appends an incident. A missing ID or timestamp is filled in.
	Record(ctx context.Context, inc Incident) error

	// List returns up to limit incidents, newest first. A limit of zero
	// or less returns all of them.
	List(ctx context.Context, limit int) ([]Incident, error)

	// CountByKind returns the number of incidents per kind.
	CountByKind(ctx context.Context) (map[Kind]int, error)

	// Close releases any resources (connections, files).
	Close() error
}

// ErrStoreClosed indicates the store has been closed.
var ErrStoreClosed = errors.New("journal store closed")

// Open returns a SQLiteStore for path, or a MemoryStore when path is empty.
func Open(path string) (Store, error) {
	if path == "" {
		return NewMemoryStore(0), nil
	}
	return NewSQLiteStore(path)
}

// normalize fills in the generated fields of an incident.
func normalize(inc Incident) Incident {
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}
	if inc.At.IsZero() {
		inc.At = time.Now()
	}
	inc.At = inc.At.UTC()
	return inc
}
