package reconciler

import (
	"fmt"
	"strings"
	"time"
)

// ActionType represents the type of reconciliation action.
type ActionType string

const (
	// ActionCreate indicates a record will be/was created.
	ActionCreate ActionType = "create"
	// ActionUpdate indicates a record will be/was replaced.
	ActionUpdate ActionType = "update"
	// ActionSkip indicates no write was needed or the target failed before a
	// decision could be made.
	ActionSkip ActionType = "skip"
)

// ActionStatus represents the outcome of an action.
type ActionStatus string

const (
	// StatusPending indicates the action has not been executed yet.
	StatusPending ActionStatus = "pending"
	// StatusSuccess indicates the action completed successfully.
	StatusSuccess ActionStatus = "success"
	// StatusFailed indicates the action failed.
	StatusFailed ActionStatus = "failed"
	// StatusSkipped indicates the action was skipped (dry-run).
	StatusSkipped ActionStatus = "skipped"
)

// Action represents what happened to one target.
type Action struct {
	// Type is the action type (create, update, skip).
	Type ActionType

	// Status is the outcome of the action.
	Status ActionStatus

	// Family is the address family of the target ("v4" or "v6").
	Family string

	// RecordName is the DNS name being reconciled.
	RecordName string

	// RecordType is "A" or "AAAA".
	RecordType string

	// Address is the public address that was resolved.
	Address string

	// Provider is the lookup service that reported Address.
	Provider string

	// Outcome is the decision reached for the record.
	Outcome Outcome

	// Error contains the error message if Status is StatusFailed.
	Error string

	// DryRun indicates this action was not actually executed.
	DryRun bool
}

// String returns a human-readable representation of the action.
func (a Action) String() string {
	status := string(a.Status)
	if a.DryRun && a.Status == StatusSkipped && a.Type != ActionSkip {
		status = "dry-run"
	}

	target := a.Address
	if target == "" {
		target = "?"
	}

	if a.Error != "" {
		return fmt.Sprintf("[%s] %s %s -> %s (%s %s): %s",
			status, a.Type, a.RecordName, target, a.RecordType, a.Family, a.Error)
	}

	return fmt.Sprintf("[%s] %s %s -> %s (%s %s)",
		status, a.Type, a.RecordName, target, a.RecordType, a.Family)
}

// Result holds the complete result of a reconciliation run.
type Result struct {
	// StartTime is when reconciliation started.
	StartTime time.Time

	// EndTime is when reconciliation completed.
	EndTime time.Time

	// Actions holds one entry per target, in the order targets ran.
	Actions []Action

	// DryRun indicates if this was a dry-run (no changes applied).
	DryRun bool
}

// NewResult creates a new Result with the start time set to now.
func NewResult(dryRun bool) *Result {
	return &Result{
		StartTime: time.Now(),
		Actions:   make([]Action, 0),
		DryRun:    dryRun,
	}
}

// Complete marks the result as complete with the end time set to now.
func (r *Result) Complete() {
	r.EndTime = time.Now()
}

// Duration returns the total reconciliation duration.
func (r *Result) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}

// AddAction adds an action to the result.
func (r *Result) AddAction(action Action) {
	action.DryRun = r.DryRun
	r.Actions = append(r.Actions, action)
}

// Written returns the actions that wrote a record.
func (r *Result) Written() []Action {
	var written []Action
	for _, a := range r.Actions {
		if a.Status == StatusSuccess && (a.Type == ActionCreate || a.Type == ActionUpdate) {
			written = append(written, a)
		}
	}
	return written
}

// UpToDate returns the actions whose record needed no change.
func (r *Result) UpToDate() []Action {
	return r.filterActions(ActionSkip, StatusSuccess)
}

// Pending returns the writes a dry run held back.
func (r *Result) Pending() []Action {
	var pending []Action
	for _, a := range r.Actions {
		if a.Status == StatusSkipped && a.Type != ActionSkip {
			pending = append(pending, a)
		}
	}
	return pending
}

// Failed returns all failed actions.
func (r *Result) Failed() []Action {
	var failed []Action
	for _, a := range r.Actions {
		if a.Status == StatusFailed {
			failed = append(failed, a)
		}
	}
	return failed
}

func (r *Result) filterActions(actionType ActionType, status ActionStatus) []Action {
	var filtered []Action
	for _, a := range r.Actions {
		if a.Type == actionType && a.Status == status {
			filtered = append(filtered, a)
		}
	}
	return filtered
}

// FailedCount returns the number of failed actions.
func (r *Result) FailedCount() int {
	return len(r.Failed())
}

// HasErrors returns true if any actions failed.
func (r *Result) HasErrors() bool {
	return r.FailedCount() > 0
}

// Summary returns a human-readable summary of the reconciliation.
func (r *Result) Summary() string {
	var sb strings.Builder

	mode := "applied"
	if r.DryRun {
		mode = "dry-run"
	}

	fmt.Fprintf(&sb, "Reconciliation complete (%s) in %s\n", mode, r.Duration().Round(time.Millisecond))
	fmt.Fprintf(&sb, "  Targets: %d\n", len(r.Actions))
	fmt.Fprintf(&sb, "  Up to date: %d\n", len(r.UpToDate()))
	fmt.Fprintf(&sb, "  Records written: %d\n", len(r.Written()))
	if r.DryRun {
		fmt.Fprintf(&sb, "  Would write: %d\n", len(r.Pending()))
	}

	if r.HasErrors() {
		fmt.Fprintf(&sb, "  Failed: %d\n", r.FailedCount())
		for _, a := range r.Failed() {
			fmt.Fprintf(&sb, "    - %s\n", a.String())
		}
	}

	return sb.String()
}
