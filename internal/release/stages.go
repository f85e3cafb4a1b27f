package release

import "fmt"

// StageName is a strongly-typed identifier for a pipeline stage.
type StageName string

// Canonical stage names, in execution order.
const (
	StageResolving          StageName = "resolving"
	StageBuilding           StageName = "building"
	StageTagging            StageName = "tagging"
	StagePublishingRelease  StageName = "publishing_release"
	StagePublishingPackages StageName = "publishing_packages"
)

// Stages lists every stage in execution order.
var Stages = []StageName{
	StageResolving,
	StageBuilding,
	StageTagging,
	StagePublishingRelease,
	StagePublishingPackages,
}

// State is the orchestrator state. Every StageName is also a State.
type State string

const (
	// StatePublishing is the state while publishing_release and
	// publishing_packages run side by side.
	StatePublishing State = "publishing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// StateOf returns the state corresponding to a running stage.
func StateOf(stage StageName) State { return State(stage) }

// Status is the outcome of a stage or a fan-out item.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// StageError ties a failure to the stage it aborted.
type StageError struct {
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("stage %s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }
