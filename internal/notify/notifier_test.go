package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/releaser/internal/release"
)

type sent struct {
	subject string
	msg     Message
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []sent
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, sent{subject: subject, msg: m})
	return nil
}

func TestNotifierLifecycle(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNotifier(pub, "releaser.events")
	n.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	ctx := context.Background()

	r := release.NewReport("run-1", "1.2.0")
	r.Version = "1.2.0"
	r.Tag = "v1.2.0"
	n.RunStarted(ctx, r)

	r.RecordStage(release.StageBuilding, release.StatusSucceeded, time.Second, nil)
	n.StageChanged(ctx, r, r.Stage(release.StageBuilding))

	it := release.ItemOutcome{Stage: release.StagePublishingPackages, Kind: release.ItemTarget, Name: "conda", Status: release.StatusFailed}
	r.AddItem(it)
	n.ItemRecorded(ctx, r, it)

	r.SetRecord(&release.Record{Tag: "v1.2.0", HTMLURL: "https://example/releases/v1.2.0"})
	r.SetState(release.StateFailed)
	n.RunFinished(ctx, r, errors.New("publish to conda: boom"))

	require.Len(t, pub.msgs, 3)
	assert.Equal(t, "releaser.events.started", pub.msgs[0].subject)
	assert.Equal(t, "v1.2.0", pub.msgs[0].msg.Tag)
	assert.Equal(t, "releaser.events.stage", pub.msgs[1].subject)
	assert.Equal(t, "building", pub.msgs[1].msg.Stage)
	assert.Equal(t, "succeeded", pub.msgs[1].msg.Status)

	fin := pub.msgs[2].msg
	assert.Equal(t, "releaser.events.finished", pub.msgs[2].subject)
	assert.Equal(t, "failed", fin.State)
	assert.Equal(t, []string{"target:conda"}, fin.Failed)
	assert.Equal(t, "https://example/releases/v1.2.0", fin.ReleaseURL)
	assert.Equal(t, "publish to conda: boom", fin.Error)
	assert.Equal(t, 2026, fin.Timestamp.Year())
}

func TestNotifierSwallowsDeliveryErrors(t *testing.T) {
	n := NewNotifier(&fakePublisher{err: errors.New("no responders")}, "x")
	assert.NotPanics(t, func() {
		n.RunStarted(context.Background(), release.NewReport("r", "1.0.0"))
	})
}
