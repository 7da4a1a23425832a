// Package events fans order events out to every configured sink.
package events

import (
	"context"
	"errors"

	"grocery/models"
)

type Publisher interface {
	Publish(ctx context.Context, event models.OrderEvent) error
}

// Multi publishes to each sink in turn and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event models.OrderEvent) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Nop struct{}

func (Nop) Publish(context.Context, models.OrderEvent) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	Events []models.OrderEvent
}

func (r *Recorder) Publish(_ context.Context, event models.OrderEvent) error {
	r.Events = append(r.Events, event)
	return nil
}

func (r *Recorder) Types() []string {
	out := make([]string, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Type
	}
	return out
}
