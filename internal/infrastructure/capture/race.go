package capture

import (
	"context"
	"time"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
	"github.com/kirillkom/certificate-harvester/internal/core/ports"
)

// Signal is one completion event, tagged with the channel it came from.
// Exactly one of the handle fields is set, matching Kind.
type Signal struct {
	Kind     domain.CaptureChannel
	Download ports.DownloadHandle
	Popup    ports.PopupHandle
	Response ports.ResponseHandle
}

// Source feeds one listener into a Race.
type Source struct {
	Kind domain.CaptureChannel
	run  func(ctx context.Context, out chan<- Signal)
}

// Watch adapts a typed listener channel into a Source. The source stops
// contributing once timeout elapses, when in closes or when the race context
// is cancelled.
func Watch[T any](kind domain.CaptureChannel, in <-chan T, timeout time.Duration, wrap func(T) Signal) Source {
	return Source{
		Kind: kind,
		run: func(ctx context.Context, out chan<- Signal) {
			var expired <-chan time.Time
			if timeout > 0 {
				timer := time.NewTimer(timeout)
				defer timer.Stop()
				expired = timer.C
			}
			for {
				select {
				case <-ctx.Done():
					return
				case <-expired:
					return
				case v, ok := <-in:
					if !ok {
						return
					}
					sig := wrap(v)
					sig.Kind = kind
					select {
					case out <- sig:
					case <-ctx.Done():
						return
					}
				}
			}
		},
	}
}

// Windows bounds a race: signals are awaited for Primary, then polled every
// Poll until Secondary has also elapsed.
type Windows struct {
	Primary   time.Duration
	Secondary time.Duration
	Poll      time.Duration
}

// Race is a first-of-N combinator over capture sources. Next may be called
// again after a winning signal turned out to be empty.
type Race struct {
	signals       chan Signal
	poll          time.Duration
	primaryEnds   time.Time
	secondaryEnds time.Time
	polls         int
}

// NewRace starts every source. Cancel ctx to release them.
func NewRace(ctx context.Context, w Windows, sources ...Source) *Race {
	now := time.Now()
	r := &Race{
		signals:       make(chan Signal, len(sources)),
		poll:          w.Poll,
		primaryEnds:   now.Add(w.Primary),
		secondaryEnds: now.Add(w.Primary + w.Secondary),
	}
	if r.poll <= 0 {
		r.poll = w.Secondary
	}
	for _, s := range sources {
		go s.run(ctx, r.signals)
	}
	return r
}

// Next returns the next signal, or false once both windows have elapsed or
// ctx is done.
func (r *Race) Next(ctx context.Context) (Signal, bool) {
	if wait := time.Until(r.primaryEnds); wait > 0 {
		if sig, ok, done := r.await(ctx, wait); ok || done {
			return sig, ok
		}
	}

	for {
		remaining := time.Until(r.secondaryEnds)
		if remaining <= 0 {
			select {
			case sig := <-r.signals:
				return sig, true
			default:
				return Signal{}, false
			}
		}
		r.polls++
		if sig, ok, done := r.await(ctx, min(r.poll, remaining)); ok || done {
			return sig, ok
		}
	}
}

// Polls is the number of secondary-window polls performed so far.
func (r *Race) Polls() int {
	return r.polls
}

func (r *Race) await(ctx context.Context, d time.Duration) (Signal, bool, bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case sig := <-r.signals:
		return sig, true, false
	case <-ctx.Done():
		return Signal{}, false, true
	case <-timer.C:
		return Signal{}, false, false
	}
}
