package backend

import (
	"context"

	"invoicemix/internal/amqp"
	"invoicemix/internal/log"
	"invoicemix/internal/scenario"
	"invoicemix/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the scenario persistence and optional event client
type BackendResult struct {
	Store   storage.KeyValue
	Events  *amqp.Client // nil when events are disabled
	Cleanup CleanupFunc
}

// ScenarioOptions returns the scenario store options matching this backend.
func (r *BackendResult) ScenarioOptions(logger *log.Logger) []scenario.Option {
	opts := []scenario.Option{}
	if logger != nil {
		opts = append(opts, scenario.WithLogger(logger))
	}
	if r.Events != nil {
		opts = append(opts, scenario.WithPublisher(r.Events))
	}
	return opts
}

// Close runs the cleanup function, if any.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// File specific
	StoreDir string

	// SQLite specific
	SQLiteDBPath string

	// Scenario events, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	FileBackend   BackendType = "file"
	SQLiteBackend BackendType = "sqlite"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, FileBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}
