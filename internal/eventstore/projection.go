// Package eventstore is the release journal: an append-only sqlite log of
// run, stage and item events plus the per-version run lock.
package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"time"
)

const (
	runStatusRunning = "running"
)

// StageSummary is the last recorded status of one stage.
type StageSummary struct {
	Status   string        `json:"status"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
	Notes    []string      `json:"notes,omitempty"`
}

// RunSummary is a read model of one release run rebuilt from its events.
type RunSummary struct {
	RunID        string                  `json:"run_id"`
	Version      string                  `json:"version"`
	Tag          string                  `json:"tag,omitempty"`
	DryRun       bool                    `json:"dry_run,omitempty"`
	Trigger      string                  `json:"trigger,omitempty"`
	Status       string                  `json:"status"` // running|done|failed
	StartedAt    time.Time               `json:"started_at"`
	FinishedAt   *time.Time              `json:"finished_at,omitempty"`
	ReleaseURL   string                  `json:"release_url,omitempty"`
	ErrorMessage string                  `json:"error,omitempty"`
	Stages       map[string]StageSummary `json:"stages"`
	Items        []ItemRecordedData      `json:"items,omitempty"`
}

// Succeeded lists the items that completed successfully.
func (r *RunSummary) Succeeded() []ItemRecordedData { return r.itemsWith("succeeded") }

// Failed lists the items that failed.
func (r *RunSummary) Failed() []ItemRecordedData { return r.itemsWith("failed") }

func (r *RunSummary) itemsWith(status string) []ItemRecordedData {
	var out []ItemRecordedData
	for _, it := range r.Items {
		if it.Status == status {
			out = append(out, it)
		}
	}
	return out
}

// Project folds events into run summaries, oldest run first. Events of
// unknown type are ignored.
func Project(events []Event) []*RunSummary {
	runs := make(map[string]*RunSummary)
	var order []string

	for _, event := range events {
		runID := event.RunID()
		if runID == "" {
			continue
		}
		summary, ok := runs[runID]
		if !ok {
			summary = &RunSummary{
				RunID:     runID,
				Version:   event.Version(),
				Status:    runStatusRunning,
				StartedAt: event.Timestamp(),
				Stages:    make(map[string]StageSummary),
			}
			runs[runID] = summary
			order = append(order, runID)
		}
		apply(summary, event)
	}

	out := make([]*RunSummary, 0, len(order))
	for _, id := range order {
		out = append(out, runs[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

func apply(summary *RunSummary, event Event) {
	switch event.Type() {
	case TypeRunStarted:
		var d RunStartedData
		if err := json.Unmarshal(event.Payload(), &d); err == nil {
			summary.StartedAt = event.Timestamp()
			summary.Tag = d.Tag
			summary.DryRun = d.DryRun
			summary.Trigger = d.Trigger
		}

	case TypeStageChanged:
		var d StageChangedData
		if err := json.Unmarshal(event.Payload(), &d); err == nil {
			summary.Stages[d.Stage] = StageSummary{
				Status:   d.Status,
				Duration: time.Duration(d.DurationMS) * time.Millisecond,
				Error:    d.Error,
				Notes:    d.Notes,
			}
		}

	case TypeItemRecorded:
		var d ItemRecordedData
		if err := json.Unmarshal(event.Payload(), &d); err == nil {
			summary.Items = append(summary.Items, d)
		}

	case TypeRunFinished:
		var d RunFinishedData
		if err := json.Unmarshal(event.Payload(), &d); err == nil {
			ts := event.Timestamp()
			summary.FinishedAt = &ts
			summary.Status = d.State
			if d.Tag != "" {
				summary.Tag = d.Tag
			}
			summary.ReleaseURL = d.ReleaseURL
			summary.ErrorMessage = d.Error
		}
	}
}

// History returns the run summaries recorded for version, oldest first.
func History(ctx context.Context, store Store, version string) ([]*RunSummary, error) {
	events, err := store.ByVersion(ctx, version)
	if err != nil {
		return nil, err
	}
	return Project(events), nil
}
