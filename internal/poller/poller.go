// Package poller re-fetches a value on a fixed interval. Polls are not
// cancelled when they overlap; updates are delivered in completion order so a
// slow poll may overwrite a newer one (last writer wins).
package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Source fetches the current value.
type Source[T any] interface {
	Fetch(ctx context.Context) (T, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc[T any] func(ctx context.Context) (T, error)

func (f SourceFunc[T]) Fetch(ctx context.Context) (T, error) { return f(ctx) }

// Update is the outcome of one poll.
type Update[T any] struct {
	Value T
	Err   error
	At    time.Time
}

// Poller runs a Source on an interval and publishes every result.
type Poller[T any] struct {
	name     string
	source   Source[T]
	interval time.Duration
	logger   *zap.Logger
	updates  chan Update[T]
}

func New[T any](name string, source Source[T], interval time.Duration, logger *zap.Logger) *Poller[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller[T]{
		name:     name,
		source:   source,
		interval: interval,
		logger:   logger.Named("poller").With(zap.String("poller", name)),
		updates:  make(chan Update[T], 4),
	}
}

// Updates is closed once Run has returned.
func (p *Poller[T]) Updates() <-chan Update[T] { return p.updates }

// Run polls immediately and then on every tick until ctx is done. Each poll
// runs in its own goroutine. Run waits for polls in flight before closing
// the updates channel.
func (p *Poller[T]) Run(ctx context.Context) {
	var wg sync.WaitGroup
	defer func() {
		wg.Wait()
		close(p.updates)
	}()

	poll := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := p.source.Fetch(ctx)
			if err != nil && ctx.Err() == nil {
				p.logger.Debug("poll failed", zap.Error(err))
			}
			select {
			case p.updates <- Update[T]{Value: v, Err: err, At: time.Now()}:
			case <-ctx.Done():
			}
		}()
	}

	poll()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll()
		}
	}
}
