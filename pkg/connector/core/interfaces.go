package core

import (
	"context"
	"time"

	"github.com/ajitpratap0/railstream/pkg/config"
	"github.com/ajitpratap0/railstream/pkg/models"
	"go.uber.org/zap"
)

// ConnectorType represents the type of connector
type ConnectorType string

const (
	ConnectorTypeSource ConnectorType = "source"
)

// SyncMode controls how a stream is read
type SyncMode string

const (
	// SyncModeFullRefresh reads the stream from the beginning on every run
	SyncModeFullRefresh SyncMode = "full_refresh"
	// SyncModeIncremental resumes the stream from persisted cursor state
	SyncModeIncremental SyncMode = "incremental"
)

// State represents connector state, persisted by the host pipeline between
// runs and replayed into the connector to resume incremental syncs.
type State map[string]interface{}

// StreamSlice is one unit of work for a stream: an opaque mapping that
// parameterizes a set of API requests (e.g. one date window for one
// connection).
type StreamSlice map[string]interface{}

// Schema represents the data schema
type Schema struct {
	Name        string
	Description string
	Fields      []Field
	Version     int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Field represents a field in the schema
type Field struct {
	Name        string
	Type        FieldType
	Description string
	Nullable    bool
	Primary     bool
}

// FieldType represents the data type of a field
type FieldType string

const (
	FieldTypeString    FieldType = "string"
	FieldTypeInt       FieldType = "int"
	FieldTypeFloat     FieldType = "float"
	FieldTypeBool      FieldType = "bool"
	FieldTypeTimestamp FieldType = "timestamp"
	FieldTypeDate      FieldType = "date"
	FieldTypeJSON      FieldType = "json"
)

// RecordStream represents a stream of records
type RecordStream struct {
	Records <-chan *models.Record
	Errors  <-chan error
}

// BatchStream represents a stream of record batches
type BatchStream struct {
	Batches <-chan []*models.Record
	Errors  <-chan error
}

// SliceStream represents a lazily produced stream of slices. Slices are
// delivered in a deterministic order; the consumer pulls them one at a
// time and stops reading to abandon the stream.
type SliceStream struct {
	Slices <-chan StreamSlice
	Errors <-chan error
}

// SliceProducer produces a lazy, finite sequence of stream slices for a
// sync run. The state mapping lets producers resume from a cursor; it may
// be empty for full-refresh runs.
type SliceProducer interface {
	StreamSlices(ctx context.Context, mode SyncMode, state State) (*SliceStream, error)
}

// RecordExtractor turns a decoded API response body into flat output
// records.
type RecordExtractor interface {
	Extract(document map[string]interface{}) ([]map[string]interface{}, error)
}

// AvailabilityStrategy decides whether a stream's upstream API is
// reachable before a sync starts. The probe is a cheap request supplied
// by the stream. When the stream is unavailable the returned reason is a
// human-readable explanation surfaced to the operator.
type AvailabilityStrategy interface {
	Check(ctx context.Context, logger *zap.Logger, probe func(context.Context) error) (available bool, reason string)
}

// Source is the interface that all source connectors must implement
type Source interface {
	// Core functionality
	Initialize(ctx context.Context, config *config.BaseConfig) error
	Discover(ctx context.Context) (*Schema, error)
	Read(ctx context.Context) (*RecordStream, error)
	ReadBatch(ctx context.Context, batchSize int) (*BatchStream, error)
	Close(ctx context.Context) error

	// State management
	GetState() State
	SetState(state State) error

	// Capabilities
	SupportsIncremental() bool
	SupportsBatch() bool

	// Health and metrics
	Health(ctx context.Context) error
	Metrics() map[string]interface{}
}

// Connector is the base interface for all connectors
type Connector interface {
	// Metadata
	Name() string
	Type() ConnectorType
	Version() string

	// Lifecycle
	Initialize(ctx context.Context, config *config.BaseConfig) error
	Close(ctx context.Context) error

	// Health and monitoring
	Health(ctx context.Context) error
	Metrics() map[string]interface{}
}

// HealthStatus represents the health status of a connector
type HealthStatus struct {
	Status    string                 `json:"status"` // "healthy", "unhealthy", "degraded"
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details"`
	Error     error                  `json:"error,omitempty"`
}

// ConnectorMetadata provides metadata about a connector
type ConnectorMetadata struct {
	Name         string        `json:"name"`
	Type         ConnectorType `json:"type"`
	Version      string        `json:"version"`
	Description  string        `json:"description"`
	Capabilities []string      `json:"capabilities"`
}
