// Package models contains shared data models used across the Focalpoint codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending   = "pending"
	JobStatusQueued    = "queued"
	JobStatusAnalyzing = "analyzing"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Analysis modes. Mode selects the critique strategy on the analysis service;
// EnableRAG additionally toggles retrieval augmentation within that strategy.
const (
	ModeDefault = "default"
	ModeRAG     = "rag"
	ModeAdapter = "adapter"
)

// ValidMode reports whether m is one of the supported analysis modes.
func ValidMode(m string) bool {
	switch m {
	case ModeDefault, ModeRAG, ModeAdapter:
		return true
	}
	return false
}

// Job tracks one async image-analysis request through the state machine.
// The API returns a job id on POST /api/v1/jobs; the client polls
// GET /api/v1/jobs/{job_id} until status is completed or failed.
//
// Filename, AdvisorID, Mode and EnableRAG are immutable after submission.
// LLMThinking and LastActivity are advisory: the relay updates them while the
// job is analyzing, and the state machine never reads LLMThinking.
type Job struct {
	ID           uuid.UUID       `db:"id"            json:"id"`
	Filename     string          `db:"filename"      json:"filename"`
	AdvisorID    string          `db:"advisor_id"    json:"advisor_id"`
	Mode         string          `db:"mode"          json:"mode"`
	EnableRAG    bool            `db:"enable_rag"    json:"enable_rag"`
	Status       string          `db:"status"        json:"status"`
	RetryCount   int             `db:"retry_count"   json:"retry_count"`
	LLMThinking  *string         `db:"llm_thinking"  json:"llm_thinking,omitempty"`
	Result       *AnalysisReport `db:"result"        json:"result,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time       `db:"created_at"    json:"created_at"`
	LastActivity time.Time       `db:"last_activity" json:"last_activity"`
}
