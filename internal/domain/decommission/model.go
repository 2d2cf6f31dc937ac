package decommission

import (
	"time"

	"github.com/opsweep/opsweep/internal/domain/backup"
	"github.com/opsweep/opsweep/internal/domain/resource"
)

// Tier names an environment tier. Tiers differ in their candidate
// allow-lists and in how much friction confirmation applies.
type Tier string

const (
	TierDevelopment Tier = "development"
	TierStaging     Tier = "staging"
	TierProduction  Tier = "production"
)

// RunPolicy carries every flag that influences a run. It is built once
// from configuration and CLI flags and passed into each component
// unchanged; no component reads process-wide state.
type RunPolicy struct {
	Tier         Tier `json:"tier"`
	DryRun       bool `json:"dry_run"`
	Force        bool `json:"force"`
	PreserveData bool `json:"preserve_data"`
	Concurrency  int  `json:"concurrency"`
}

// Outcome is the terminal result for one resource in one run.
type Outcome string

const (
	OutcomeDeleted           Outcome = "deleted"
	OutcomeScaledDown        Outcome = "scaled-down"
	OutcomeSkippedDependency Outcome = "skipped-dependency"
	OutcomeSkippedProtected  Outcome = "skipped-protected"
	OutcomeFailed            Outcome = "failed"
	OutcomeDryRunOnly        Outcome = "dry-run-only"
)

// Decision records the outcome for one resource, with the backup record
// reference when one was taken.
type Decision struct {
	ResourceID   string         `json:"resource_id"`
	ResourceName string         `json:"resource_name"`
	ResourceType resource.Type  `json:"resource_type"`
	Outcome      Outcome        `json:"outcome"`
	Reason       string         `json:"reason,omitempty"`
	Backup       *backup.Record `json:"backup,omitempty"`
	DecidedAt    time.Time      `json:"decided_at"`
}

// RunStatus describes how the active phase of a run ended.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunCancelled RunStatus = "cancelled"
)

// Report is the append-only record of one run: every resource that was
// discovered has exactly one decision here. Written once to durable
// storage, never mutated afterward.
type Report struct {
	RunID      string     `json:"run_id"`
	Scope      string     `json:"scope"`
	Tier       Tier       `json:"tier"`
	Operator   string     `json:"operator,omitempty"`
	DryRun     bool       `json:"dry_run"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Decisions  []Decision `json:"decisions"`
}

// Counts tallies decisions per outcome.
func (r *Report) Counts() map[Outcome]int {
	counts := make(map[Outcome]int)
	for _, d := range r.Decisions {
		counts[d.Outcome]++
	}
	return counts
}
