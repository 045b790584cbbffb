// Package models holds the domain structs shared across the broker,
// jobstore, worker, pipeline, extension, and store packages.
package models

import (
	"encoding/json"
	"time"
)

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobClaimed   JobStatus = "claimed"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobDead      JobStatus = "dead"
)

// Terminal reports whether a job in this status will never transition again.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobDead
}

// Job is a unit of work addressed to a pool.
type Job struct {
	ID                string
	Pool              string
	Payload           []byte // opaque, pool-typed JSON
	Priority          int
	Status            JobStatus
	Attempts          int
	WorkerRequeueCount int
	MaxWorkerRequeues int
	Result            []byte
	Error             string
	ClaimedBy         string
	CorrelationID     string
	CreatedAt         time.Time
	ClaimedAt         *time.Time
	FinalizedAt       *time.Time
}

// ResourceTier classifies the hardware a pool's workers require.
type ResourceTier string

const (
	TierCPULight   ResourceTier = "cpu-light"
	TierCPUNER     ResourceTier = "cpu-ner"
	TierCPUExtract ResourceTier = "cpu-extract"
	TierGPUEmbed   ResourceTier = "gpu-embed"
	TierGPUPaddle  ResourceTier = "gpu-paddle"
	TierGPUQwen    ResourceTier = "gpu-qwen"
)

// Pool is a declarative worker class: a name, a resource tier, and the
// concurrency/timeout policy shared by every worker that drains it.
type Pool struct {
	Name           string
	ResourceTier   ResourceTier
	MaxConcurrency int
	JobTimeout     time.Duration
}

// Worker is a registered executor.
type Worker struct {
	ID            string
	Pool          string
	Host          string
	RegisteredAt  time.Time
	LastHeartbeat time.Time
	CurrentJobID  string // empty when idle
}

// Event is a single entry in the event bus's session log.
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Payload       json.RawMessage `json:"payload"`
	Timestamp     time.Time       `json:"timestamp"`
	Sequence      uint64          `json:"sequence"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// DocumentStatus tracks a document's progress through the pipeline DAG.
type DocumentStatus string

const (
	DocPending    DocumentStatus = "pending"
	DocProcessing DocumentStatus = "processing"
	DocComplete   DocumentStatus = "complete"
	DocPartial    DocumentStatus = "partial"
	DocFailed     DocumentStatus = "failed"
)

// Document is the core content-store artifact every pipeline stage acts on.
type Document struct {
	ID             string
	FileHash       string // SHA-256, content address, globally unique
	Status         DocumentStatus
	NumPages       int
	Author         string
	Producer       string
	CreationDate   *time.Time
	Encrypted      bool
	SizeBytes      int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Chunk is a dense-indexed slice of a document's normalized text.
type Chunk struct {
	ID          string
	DocumentID  string
	Text        string
	ChunkIndex  int
	PageNumber  int
	VectorID    string // empty until embedded
}

// EntityMention is a per-chunk named-entity extraction.
type EntityMention struct {
	ID              string
	ChunkID         string
	DocumentID      string
	Text            string
	Label           string
	StartChar       int
	EndChar         int
	Confidence      float64 // ranking signal, not a calibrated probability
	CanonicalID     string
}

// CanonicalEntity is the deduplicated representative of many mentions.
type CanonicalEntity struct {
	ID           string
	Label        string
	Name         string
	MentionCount int
}

// Vector is an embedding stored in the vector schema, tagged with the
// collection it belongs to and the artifact it was derived from.
type Vector struct {
	ID         string
	Collection string
	DocumentID string
	ChunkID    string
	Model      string
	Embedding  []float32
}
