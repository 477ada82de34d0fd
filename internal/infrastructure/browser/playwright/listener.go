package playwright

import "sync"

// listener forwards events from a handler registered once on the page to the
// channel of the current arm. Events with nobody armed are dropped unless the
// listener keeps a backlog, in which case the latest keep of them are handed
// to the next arm that matches them.
type listener[T any] struct {
	mu    sync.Mutex
	ch    chan T
	match func(T) bool
	keep  int
	kept  []T
}

func newBacklogListener[T any](keep int) *listener[T] {
	return &listener[T]{keep: keep}
}

func (l *listener[T]) arm(match func(T) bool) (<-chan T, func()) {
	l.mu.Lock()
	ch := make(chan T, max(4, l.keep))
	l.ch, l.match = ch, match
	l.drainLocked()
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.ch == ch {
				l.ch, l.match = nil, nil
			}
		})
	}
}

// drainLocked moves matching backlog entries into the armed channel.
func (l *listener[T]) drainLocked() {
	if len(l.kept) == 0 {
		return
	}
	rest := l.kept[:0]
	for _, v := range l.kept {
		if l.match != nil && !l.match(v) {
			rest = append(rest, v)
			continue
		}
		select {
		case l.ch <- v:
		default:
			rest = append(rest, v)
		}
	}
	clear(l.kept[len(rest):])
	l.kept = rest
}

// deliver never blocks; it runs on the driver's event goroutine.
func (l *listener[T]) deliver(v T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ch != nil && (l.match == nil || l.match(v)) {
		select {
		case l.ch <- v:
			return true
		default:
		}
	}
	if l.keep > 0 {
		if len(l.kept) == l.keep {
			l.kept = append(l.kept[:0], l.kept[1:]...)
		}
		l.kept = append(l.kept, v)
	}
	return false
}
