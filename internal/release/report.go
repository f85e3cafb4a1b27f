package release

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ItemKind identifies the fan-out member type of an ItemOutcome.
type ItemKind string

const (
	ItemBuild  ItemKind = "build"
	ItemAsset  ItemKind = "asset"
	ItemTarget ItemKind = "target"
)

// StageOutcome records the result of one pipeline stage.
type StageOutcome struct {
	Stage    StageName     `json:"stage"`
	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
	Notes    []string      `json:"notes,omitempty"`
}

// ItemOutcome records the result of one fan-out member (platform build, asset
// upload or registry publish).
type ItemOutcome struct {
	Stage    StageName `json:"stage"`
	Kind     ItemKind  `json:"kind"`
	Name     string    `json:"name"`
	Status   Status    `json:"status"`
	Attempts int       `json:"attempts,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Report is the structured result of a pipeline run. It is safe for
// concurrent use by sibling stages.
type Report struct {
	mu sync.Mutex

	RunID      string         `json:"run_id"`
	RawVersion string         `json:"raw_version"`
	Version    string         `json:"version,omitempty"`
	Tag        string         `json:"tag,omitempty"`
	BuildID    string         `json:"build_id,omitempty"`
	State      State          `json:"state"`
	DryRun     bool           `json:"dry_run,omitempty"`
	Start      time.Time      `json:"start"`
	End        time.Time      `json:"end"`
	Stages     []StageOutcome `json:"stages"`
	Items      []ItemOutcome  `json:"items,omitempty"`
	Record     *Record        `json:"release,omitempty"`
	Artifacts  []Artifact     `json:"artifacts,omitempty"`
}

// NewReport creates a report with every stage pending.
func NewReport(runID, rawVersion string) *Report {
	r := &Report{
		RunID:      runID,
		RawVersion: rawVersion,
		State:      StateOf(StageResolving),
		Start:      time.Now(),
	}
	for _, st := range Stages {
		r.Stages = append(r.Stages, StageOutcome{Stage: st, Status: StatusPending})
	}
	return r
}

// SetState moves the report to a new orchestrator state.
func (r *Report) SetState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.State = s
}

// CurrentState returns the orchestrator state.
func (r *Report) CurrentState() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.State
}

// RecordStage stores the outcome of a stage.
func (r *Report) RecordStage(stage StageName, status Status, d time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	so := r.stageLocked(stage)
	so.Status = status
	so.Duration = d
	if err != nil {
		so.Error = err.Error()
	}
}

// AddStageNote attaches an informational note to a stage.
func (r *Report) AddStageNote(stage StageName, note string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	so := r.stageLocked(stage)
	so.Notes = append(so.Notes, note)
}

func (r *Report) stageLocked(stage StageName) *StageOutcome {
	for i := range r.Stages {
		if r.Stages[i].Stage == stage {
			return &r.Stages[i]
		}
	}
	r.Stages = append(r.Stages, StageOutcome{Stage: stage, Status: StatusPending})
	return &r.Stages[len(r.Stages)-1]
}

// StageStatus returns the recorded status of a stage.
func (r *Report) StageStatus(stage StageName) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stageLocked(stage).Status
}

// Stage returns a copy of the recorded outcome of stage.
func (r *Report) Stage(stage StageName) StageOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	so := *r.stageLocked(stage)
	so.Notes = append([]string(nil), so.Notes...)
	return so
}

// AddItem records a fan-out member outcome.
func (r *Report) AddItem(item ItemOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Items = append(r.Items, item)
}

// ItemsFor returns the outcomes of one item kind, sorted by name.
func (r *Report) ItemsFor(kind ItemKind) []ItemOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ItemOutcome
	for _, it := range r.Items {
		if it.Kind == kind {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetRecord stores the hosted release record once created.
func (r *Report) SetRecord(rec *Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Record = rec
}

// SetArtifacts stores the artifacts handed to the publish stages.
func (r *Report) SetArtifacts(artifacts []Artifact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Artifacts = append([]Artifact(nil), artifacts...)
}

// Finish stamps the end time.
func (r *Report) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.End = time.Now()
}

// Succeeded is true only when the run reached done with every item succeeded
// and every stage either succeeded or was skipped because it is not configured.
func (r *Report) Succeeded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.State != StateDone {
		return false
	}
	for _, s := range r.Stages {
		if s.Status != StatusSucceeded && s.Status != StatusSkipped {
			return false
		}
	}
	for _, it := range r.Items {
		if it.Status != StatusSucceeded {
			return false
		}
	}
	return true
}

// FailedStages lists the stages recorded as failed.
func (r *Report) FailedStages() []StageName {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []StageName
	for _, s := range r.Stages {
		if s.Status == StatusFailed {
			out = append(out, s.Stage)
		}
	}
	return out
}

// MarshalJSON serializes a consistent snapshot.
func (r *Report) MarshalJSON() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	type snapshot struct {
		RunID      string         `json:"run_id"`
		RawVersion string         `json:"raw_version"`
		Version    string         `json:"version,omitempty"`
		Tag        string         `json:"tag,omitempty"`
		BuildID    string         `json:"build_id,omitempty"`
		State      State          `json:"state"`
		DryRun     bool           `json:"dry_run,omitempty"`
		Start      time.Time      `json:"start"`
		End        time.Time      `json:"end"`
		Stages     []StageOutcome `json:"stages"`
		Items      []ItemOutcome  `json:"items,omitempty"`
		Record     *Record        `json:"release,omitempty"`
		Artifacts  []Artifact     `json:"artifacts,omitempty"`
	}
	return json.Marshal(snapshot{
		RunID: r.RunID, RawVersion: r.RawVersion, Version: r.Version, Tag: r.Tag, BuildID: r.BuildID,
		State: r.State, DryRun: r.DryRun, Start: r.Start, End: r.End, Stages: r.Stages,
		Items: r.Items, Record: r.Record, Artifacts: r.Artifacts,
	})
}

// Summary renders the operator-facing report: every stage, every item, and the
// failures an operator has to resume by hand.
func (r *Report) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var b strings.Builder
	label := r.Tag
	if label == "" {
		label = r.RawVersion
	}
	fmt.Fprintf(&b, "release %s: %s\n", label, r.State)
	for _, s := range r.Stages {
		line := fmt.Sprintf("  %-20s %-9s", s.Stage, s.Status)
		if s.Duration > 0 {
			line += fmt.Sprintf(" %s", s.Duration.Round(time.Millisecond))
		}
		if s.Error != "" {
			line += "  " + s.Error
		}
		b.WriteString(strings.TrimRight(line, " ") + "\n")
		for _, n := range s.Notes {
			fmt.Fprintf(&b, "    note: %s\n", n)
		}
		for _, it := range r.Items {
			if it.Stage != s.Stage {
				continue
			}
			item := fmt.Sprintf("    %-6s %-40s %s", it.Kind, it.Name, it.Status)
			if it.Attempts > 1 {
				item += fmt.Sprintf(" (%d attempts)", it.Attempts)
			}
			if it.Error != "" {
				item += "  " + it.Error
			}
			b.WriteString(item + "\n")
		}
	}
	if r.Record != nil && r.Record.HTMLURL != "" {
		fmt.Fprintf(&b, "  release url: %s\n", r.Record.HTMLURL)
	}
	return b.String()
}
