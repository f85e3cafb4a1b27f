package pipeline

import (
	"context"
	"sync"

	"git.home.luguber.info/inful/releaser/internal/release"
)

// Observer receives run progress as it happens. Observers must not block for
// long; calls for items of one fan-out may arrive concurrently.
type Observer interface {
	RunStarted(ctx context.Context, r *release.Report)
	StageChanged(ctx context.Context, r *release.Report, so release.StageOutcome)
	ItemRecorded(ctx context.Context, r *release.Report, it release.ItemOutcome)
	RunFinished(ctx context.Context, r *release.Report, runErr error)
}

// observers delivers each event to every registered Observer in order.
type observers struct {
	mu   sync.Mutex
	list []Observer
}

func (o *observers) add(obs ...Observer) {
	for _, ob := range obs {
		if ob != nil {
			o.list = append(o.list, ob)
		}
	}
}

func (o *observers) RunStarted(ctx context.Context, r *release.Report) {
	for _, ob := range o.list {
		ob.RunStarted(ctx, r)
	}
}

func (o *observers) StageChanged(ctx context.Context, r *release.Report, so release.StageOutcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, ob := range o.list {
		ob.StageChanged(ctx, r, so)
	}
}

func (o *observers) ItemRecorded(ctx context.Context, r *release.Report, it release.ItemOutcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, ob := range o.list {
		ob.ItemRecorded(ctx, r, it)
	}
}

func (o *observers) RunFinished(ctx context.Context, r *release.Report, runErr error) {
	for _, ob := range o.list {
		ob.RunFinished(ctx, r, runErr)
	}
}
