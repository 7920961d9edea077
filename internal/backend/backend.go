// Package backend defines the capability interfaces a database engine must
// satisfy to be benchmarked, and the registry of available engines.
package backend

import (
	"context"

	"github.com/pgEdge/pgedge-rrbench/internal/catalog"
)

// Backend is a benchmarked database engine. A Backend only hands out
// handles; it never executes workload statements itself.
type Backend interface {
	// Name returns the backend name.
	Name() string

	// Description returns a human-readable description.
	Description() string

	// OpenPrimary opens a new handle on the primary with its own
	// dedicated connection. The label identifies the handle in server
	// side tooling (for example the Postgres application_name).
	OpenPrimary(ctx context.Context, label string) (Primary, error)

	// OpenReplica opens a new handle on the read replica with its own
	// dedicated connection.
	OpenReplica(ctx context.Context, label string) (Replica, error)

	// LoadCorpus reads the ids currently present on the primary.
	LoadCorpus(ctx context.Context) (*catalog.Corpus, error)

	// Close releases resources held by the backend itself. Handles must
	// be closed separately.
	Close() error
}

// Primary is a write handle owning exactly one connection. It must not be
// used from more than one goroutine at a time.
type Primary interface {
	// ExecuteWrite runs op as a single transaction and returns the id of
	// the affected row (the new id for inserts).
	ExecuteWrite(ctx context.Context, op catalog.Operation) (int64, error)

	// Close closes the underlying connection. It may be called from
	// another goroutine to abort an in-flight call.
	Close(ctx context.Context) error
}

// Replica is a read handle owning exactly one connection. It must not be
// used from more than one goroutine at a time.
type Replica interface {
	// ExecuteRead runs the named query with the given parameters and
	// returns the number of rows it produced. Zero rows is not an error.
	ExecuteRead(ctx context.Context, q catalog.QueryDefinition, params catalog.Params) (int64, error)

	// Close closes the underlying connection. It may be called from
	// another goroutine to abort an in-flight call.
	Close(ctx context.Context) error
}

// Loader is implemented by backends that can create their schema and bulk
// load the dataset corpus.
type Loader interface {
	// CreateSchema creates tables and the analytical views.
	CreateSchema(ctx context.Context) error

	// DropSchema drops all benchmark tables and views.
	DropSchema(ctx context.Context) error

	// LoadRows inserts rows into the entity's table. Values follow the
	// column order returned by Entity.Columns.
	LoadRows(ctx context.Context, entity catalog.Entity, columns []string, rows [][]any) (int64, error)

	// AdvanceSequences moves every id sequence past max(id) so that
	// generated ids never collide with the loaded corpus.
	AdvanceSequences(ctx context.Context) error
}

// LoadRecorder is implemented by backends that keep a record of how the
// dataset was loaded.
type LoadRecorder interface {
	RecordLoad(ctx context.Context, values map[string]string) error
}

// Config carries the connection settings shared by all backends. Each
// backend reads the fields it needs.
type Config struct {
	WriterURL string
	ReaderURL string
	DBPath    string

	// Memory backend tuning.
	Latency     string
	FailureRate float64
}

// Factory builds a backend from configuration.
type Factory func(ctx context.Context, cfg Config) (Backend, error)
