// Package models provides the unified record model for Railstream.
// Records flow from source connectors to the host pipeline and carry
// the extracted payload plus source and timing metadata. Records are
// pooled to keep allocation pressure low on hot read paths.
package models

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// RecordMetadata contains structured metadata for records. All fields are
// optional to support different integration patterns.
type RecordMetadata struct {
	// Source identifies the origin connector
	Source string `json:"source,omitempty"`
	// Stream identifies the stream for multi-stream sources
	Stream string `json:"stream,omitempty"`
	// Timestamp when the record was captured
	Timestamp time.Time `json:"timestamp"`
	// Custom metadata fields for extensibility
	Custom map[string]interface{} `json:"custom,omitempty"`
}

// Record is the unified record type used throughout Railstream.
// Records should be obtained from the pool using GetRecord rather
// than created directly, and released with Release when done.
type Record struct {
	// ID is a unique identifier for the record
	ID string `json:"id"`
	// Data contains the actual record payload
	Data map[string]interface{} `json:"data"`
	// Metadata contains source and timing information
	Metadata RecordMetadata `json:"metadata"`
}

var recordPool = sync.Pool{
	New: func() interface{} {
		return &Record{
			Data: make(map[string]interface{}, 16),
		}
	},
}

var idCounter uint64

// GenerateID generates a unique ID with the specified prefix.
// The ID format is "prefix-number" where number is an atomic counter.
func GenerateID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, atomic.AddUint64(&idCounter, 1))
}

// GetRecord retrieves a Record from the pool with a fresh timestamp.
// Records must be returned with Release when no longer needed.
func GetRecord() *Record {
	r := recordPool.Get().(*Record)
	r.Metadata.Timestamp = time.Now()
	return r
}

// PutRecord returns a Record to the pool for reuse. Safe to call with nil.
func PutRecord(r *Record) {
	if r == nil {
		return
	}
	r.ID = ""
	for k := range r.Data {
		delete(r.Data, k)
	}
	r.Metadata = RecordMetadata{}
	recordPool.Put(r)
}

// NewRecord creates a pooled record with the given source and data map.
// The caller should call Release when done.
func NewRecord(source string, data map[string]interface{}) *Record {
	r := GetRecord()
	r.ID = GenerateID("rec")
	r.Data = data
	r.Metadata.Source = source
	return r
}

// NewRecordFromPool creates a record using entirely pooled resources.
// This is the most efficient way to build records incrementally.
func NewRecordFromPool(source string) *Record {
	r := GetRecord()
	r.ID = GenerateID("rec")
	r.Metadata.Source = source
	return r
}

// SetData sets a data field on the record
func (r *Record) SetData(key string, value interface{}) {
	if r.Data == nil {
		r.Data = make(map[string]interface{}, 16)
	}
	r.Data[key] = value
}

// GetData retrieves a data field from the record
func (r *Record) GetData(key string) (interface{}, bool) {
	if r.Data == nil {
		return nil, false
	}
	val, ok := r.Data[key]
	return val, ok
}

// SetMetadata sets a custom metadata field, initializing the map if needed
func (r *Record) SetMetadata(key string, value interface{}) {
	if r.Metadata.Custom == nil {
		r.Metadata.Custom = make(map[string]interface{}, 8)
	}
	r.Metadata.Custom[key] = value
}

// GetMetadata retrieves a custom metadata field
func (r *Record) GetMetadata(key string) (interface{}, bool) {
	if r.Metadata.Custom == nil {
		return nil, false
	}
	val, ok := r.Metadata.Custom[key]
	return val, ok
}

// SetTimestamp sets the record's timestamp
func (r *Record) SetTimestamp(t time.Time) {
	r.Metadata.Timestamp = t
}

// GetTimestamp returns the record's timestamp
func (r *Record) GetTimestamp() time.Time {
	return r.Metadata.Timestamp
}

// Release returns the record to the pool
func (r *Record) Release() {
	PutRecord(r)
}
