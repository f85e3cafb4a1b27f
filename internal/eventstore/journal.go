package eventstore

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/releaser/internal/logfields"
	"git.home.luguber.info/inful/releaser/internal/release"
)

// Journal records pipeline progress into a Store. Append failures are logged
// and never fail the run.
type Journal struct {
	store   Store
	trigger string
}

// NewJournal creates a journal over store. trigger names what started the
// runs (cli, schedule).
func NewJournal(store Store, trigger string) *Journal {
	return &Journal{store: store, trigger: trigger}
}

// Store returns the underlying store.
func (j *Journal) Store() Store { return j.store }

func (j *Journal) append(ctx context.Context, e *BaseEvent, err error) {
	if err == nil {
		// Journal writes must not be cut short by a cancelled run context.
		err = j.store.Append(context.WithoutCancel(ctx), e)
	}
	if err != nil {
		slog.Warn("Failed to write release journal", logfields.Error(err))
	}
}

// RunStarted records the start of a run.
func (j *Journal) RunStarted(ctx context.Context, r *release.Report) {
	e, err := NewRunStarted(r.RunID, versionOf(r), RunStartedData{
		RawVersion: r.RawVersion,
		Tag:        r.Tag,
		DryRun:     r.DryRun,
		Trigger:    j.trigger,
	})
	j.append(ctx, e, err)
}

// StageChanged records a stage outcome.
func (j *Journal) StageChanged(ctx context.Context, r *release.Report, so release.StageOutcome) {
	e, err := NewStageChanged(r.RunID, versionOf(r), StageChangedData{
		Stage:      string(so.Stage),
		Status:     string(so.Status),
		DurationMS: so.Duration.Milliseconds(),
		Error:      so.Error,
		Notes:      so.Notes,
	})
	j.append(ctx, e, err)
}

// ItemRecorded records a fan-out member outcome.
func (j *Journal) ItemRecorded(ctx context.Context, r *release.Report, it release.ItemOutcome) {
	e, err := NewItemRecorded(r.RunID, versionOf(r), ItemRecordedData{
		Stage:    string(it.Stage),
		Kind:     string(it.Kind),
		Name:     it.Name,
		Status:   string(it.Status),
		Attempts: it.Attempts,
		Error:    it.Error,
	})
	j.append(ctx, e, err)
}

// RunFinished records the final state of a run.
func (j *Journal) RunFinished(ctx context.Context, r *release.Report, runErr error) {
	data := RunFinishedData{
		State:      string(r.CurrentState()),
		Tag:        r.Tag,
		DurationMS: r.End.Sub(r.Start).Milliseconds(),
	}
	for _, st := range r.FailedStages() {
		data.FailedStages = append(data.FailedStages, string(st))
	}
	if rec := r.Record; rec != nil {
		data.ReleaseURL = rec.HTMLURL
	}
	if runErr != nil {
		data.Error = runErr.Error()
	}
	e, err := NewRunFinished(r.RunID, versionOf(r), data)
	j.append(ctx, e, err)
}

// versionOf keys runs by canonical version, falling back to the raw input
// when resolution failed.
func versionOf(r *release.Report) string {
	if r.Version != "" {
		return r.Version
	}
	return r.RawVersion
}
