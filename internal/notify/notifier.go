// Package notify announces release progress on a message bus so that other
// systems (chat bots, dashboards, downstream pipelines) can react.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/releaser/internal/logfields"
	"git.home.luguber.info/inful/releaser/internal/release"
)

// Publisher delivers one message to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Event kinds, appended to the configured subject.
const (
	KindStarted  = "started"
	KindStage    = "stage"
	KindFinished = "finished"
)

// Message is the JSON body of every notification.
type Message struct {
	Kind       string    `json:"kind"`
	RunID      string    `json:"run_id"`
	Version    string    `json:"version,omitempty"`
	Tag        string    `json:"tag,omitempty"`
	DryRun     bool      `json:"dry_run,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	Status     string    `json:"status,omitempty"`
	State      string    `json:"state,omitempty"`
	Error      string    `json:"error,omitempty"`
	ReleaseURL string    `json:"release_url,omitempty"`
	Failed     []string  `json:"failed,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Notifier turns pipeline progress into messages on "<subject>.<kind>".
// Delivery failures are logged and never fail the run.
type Notifier struct {
	pub     Publisher
	subject string
	now     func() time.Time
}

// NewNotifier creates a notifier publishing below subject.
func NewNotifier(pub Publisher, subject string) *Notifier {
	return &Notifier{pub: pub, subject: subject, now: time.Now}
}

func (n *Notifier) send(ctx context.Context, m Message) {
	m.Timestamp = n.now().UTC()
	data, err := json.Marshal(m)
	if err != nil {
		slog.Warn("Failed to encode notification", logfields.Error(err))
		return
	}
	subject := n.subject + "." + m.Kind
	if err := n.pub.Publish(context.WithoutCancel(ctx), subject, data); err != nil {
		slog.Warn("Failed to publish notification", slog.String("subject", subject), logfields.Error(err))
		return
	}
	slog.Debug("Published notification", slog.String("subject", subject), logfields.RunID(m.RunID))
}

func base(kind string, r *release.Report) Message {
	return Message{Kind: kind, RunID: r.RunID, Version: r.Version, Tag: r.Tag, DryRun: r.DryRun}
}

// RunStarted announces a run.
func (n *Notifier) RunStarted(ctx context.Context, r *release.Report) {
	n.send(ctx, base(KindStarted, r))
}

// StageChanged announces a finished stage.
func (n *Notifier) StageChanged(ctx context.Context, r *release.Report, so release.StageOutcome) {
	m := base(KindStage, r)
	m.Stage = string(so.Stage)
	m.Status = string(so.Status)
	m.Error = so.Error
	n.send(ctx, m)
}

// ItemRecorded is not announced; items are summarized in the finished message.
func (n *Notifier) ItemRecorded(context.Context, *release.Report, release.ItemOutcome) {}

// RunFinished announces the final state with the failed items, if any.
func (n *Notifier) RunFinished(ctx context.Context, r *release.Report, runErr error) {
	m := base(KindFinished, r)
	m.State = string(r.CurrentState())
	if runErr != nil {
		m.Error = runErr.Error()
	}
	if r.Record != nil {
		m.ReleaseURL = r.Record.HTMLURL
	}
	for _, kind := range []release.ItemKind{release.ItemBuild, release.ItemAsset, release.ItemTarget} {
		for _, it := range r.ItemsFor(kind) {
			if it.Status != release.StatusSucceeded {
				m.Failed = append(m.Failed, string(kind)+":"+it.Name)
			}
		}
	}
	n.send(ctx, m)
}
