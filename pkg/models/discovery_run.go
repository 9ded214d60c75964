package models

import (
	"time"

	"github.com/google/uuid"
)

// Discovery run status values. A run is terminal once it leaves "running".
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// StageSelection toggles individual discovery stages for one run.
type StageSelection struct {
	Forms           bool `json:"forms"`
	NonFormSchema   bool `json:"non_form_schema"`
	Relationships   bool `json:"relationships"`
	AssessmentTypes bool `json:"assessment_types"`
	Logging         bool `json:"logging"`
}

// AllStages returns a selection with every discovery stage enabled.
func AllStages() StageSelection {
	return StageSelection{
		Forms:           true,
		NonFormSchema:   true,
		Relationships:   true,
		AssessmentTypes: true,
		Logging:         true,
	}
}

// DiscoverySummary holds the counters computed from the semantic index after
// all enabled stages complete.
type DiscoverySummary struct {
	FormsDiscovered        int     `json:"forms_discovered"`
	FieldsDiscovered       int     `json:"fields_discovered"`
	AverageConfidence      float64 `json:"average_confidence"`
	FieldsRequiringReview  int     `json:"fields_requiring_review"`
	NonFormColumns         int     `json:"non_form_columns"`
	AssessmentTypesIndexed int     `json:"assessment_types_indexed"`
}

// DiscoveryRun identifies one discovery execution for one customer.
// Created at orchestration start, mutated only by the orchestrator.
// Stored in engine_discovery_runs.
type DiscoveryRun struct {
	ID           uuid.UUID        `json:"id"`
	CustomerID   uuid.UUID        `json:"customer_id"`
	Status       string           `json:"status"` // "running", "succeeded", "failed"
	Stages       StageSelection   `json:"stages"`
	Warnings     []string         `json:"warnings"`
	Errors       []string         `json:"errors"`
	Summary      DiscoverySummary `json:"summary"`
	ErrorMessage *string          `json:"error_message,omitempty"` // Set only on run-fatal failure
	StartedAt    time.Time        `json:"started_at"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
}
