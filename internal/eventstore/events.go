package eventstore

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/releaser/internal/foundation/errors"
)

// Event type names.
const (
	TypeRunStarted   = "RunStarted"
	TypeStageChanged = "StageChanged"
	TypeItemRecorded = "ItemRecorded"
	TypeRunFinished  = "RunFinished"
)

// RunStartedData is the payload of a RunStarted event.
type RunStartedData struct {
	RawVersion string `json:"raw_version"`
	Tag        string `json:"tag,omitempty"`
	DryRun     bool   `json:"dry_run,omitempty"`
	Trigger    string `json:"trigger,omitempty"` // cli|schedule
}

// StageChangedData is the payload of a StageChanged event.
type StageChangedData struct {
	Stage      string   `json:"stage"`
	Status     string   `json:"status"`
	DurationMS int64    `json:"duration_ms,omitempty"`
	Error      string   `json:"error,omitempty"`
	Notes      []string `json:"notes,omitempty"`
}

// ItemRecordedData is the payload of an ItemRecorded event.
type ItemRecordedData struct {
	Stage    string `json:"stage"`
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Attempts int    `json:"attempts,omitempty"`
	Error    string `json:"error,omitempty"`
}

// RunFinishedData is the payload of a RunFinished event.
type RunFinishedData struct {
	State        string   `json:"state"`
	Tag          string   `json:"tag,omitempty"`
	ReleaseURL   string   `json:"release_url,omitempty"`
	FailedStages []string `json:"failed_stages,omitempty"`
	DurationMS   int64    `json:"duration_ms"`
	Error        string   `json:"error,omitempty"`
}

// NewEvent marshals data into an event of the given type.
func NewEvent(runID, version, eventType string, data any) (*BaseEvent, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, errors.JournalError(ErrMarshalPayloadFailed.Message()).
			WithCause(err).
			WithContext("run_id", runID).
			WithContext("type", eventType).
			Build()
	}
	return &BaseEvent{
		EventRunID:     runID,
		EventVersion:   version,
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   payload,
	}, nil
}

// NewRunStarted creates a RunStarted event.
func NewRunStarted(runID, version string, data RunStartedData) (*BaseEvent, error) {
	return NewEvent(runID, version, TypeRunStarted, data)
}

// NewStageChanged creates a StageChanged event.
func NewStageChanged(runID, version string, data StageChangedData) (*BaseEvent, error) {
	return NewEvent(runID, version, TypeStageChanged, data)
}

// NewItemRecorded creates an ItemRecorded event.
func NewItemRecorded(runID, version string, data ItemRecordedData) (*BaseEvent, error) {
	return NewEvent(runID, version, TypeItemRecorded, data)
}

// NewRunFinished creates a RunFinished event.
func NewRunFinished(runID, version string, data RunFinishedData) (*BaseEvent, error) {
	return NewEvent(runID, version, TypeRunFinished, data)
}
