/*
Package storage provides data models for persisted history entries.
*/
package storage

import (
	"time"

	"github.com/toolvault/toolvault/internal/payload"
)

// Status is the outcome of a tool execution.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Trigger is the user/system action that caused an execution to be logged.
type Trigger string

const (
	// TriggerClick is an explicit run-button click.
	TriggerClick Trigger = "click"
	// TriggerQuery is a URL-driven reload.
	TriggerQuery Trigger = "query"
	// TriggerAuto is a blur-triggered automatic log.
	TriggerAuto Trigger = "auto"
	// TriggerUpload is a file upload.
	TriggerUpload Trigger = "upload"
)

// ValidTrigger reports whether t is a known trigger.
func ValidTrigger(t Trigger) bool {
	switch t {
	case TriggerClick, TriggerQuery, TriggerAuto, TriggerUpload:
		return true
	}
	return false
}

// Entry is one persisted history record: the unique row for a
// (tool route, input) pair.
type Entry struct {
	// ID is an opaque identifier assigned once at creation.
	ID string `json:"id"`

	// ToolName is the display name of the tool.
	ToolName string `json:"toolName"`

	// ToolRoute is the logical tool key used for grouping and filtering.
	ToolRoute string `json:"toolRoute"`

	// Fingerprint is the canonical digest of Input, the dedup key within
	// a route.
	Fingerprint string `json:"-"`

	// Input is the last-used input payload.
	Input payload.Value `json:"input"`

	// Output is the latest result payload, possibly redacted.
	Output payload.Value `json:"output"`

	// Status is the outcome of the most recent execution.
	Status Status `json:"status"`

	// Timestamps holds execution instants, newest first, capped.
	Timestamps []time.Time `json:"timestamps"`

	// Triggers holds the distinct causes that produced executions, capped.
	Triggers []Trigger `json:"triggers"`

	// LastUsed is the most recent timestamp, used for ordering and
	// eviction.
	LastUsed time.Time `json:"lastUsed"`
}
