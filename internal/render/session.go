package render

import (
	"context"
	"sync"
	"time"
)

// Result is one completed preview render.
type Result struct {
	Seq  uint64
	HTML string
}

// Session renders live-edited text after it settles. Each Update supersedes
// the previous one: a pending render is cancelled, and a render that finishes
// after a newer one has been delivered is dropped.
type Session struct {
	r      *Renderer
	settle time.Duration
	emit   func(Result)

	mu        sync.Mutex
	seq       uint64
	delivered uint64
	timer     *time.Timer
	cancel    context.CancelFunc
	closed    bool
}

// NewSession creates a preview session. emit is called with the session lock
// held and must not call back into the session.
func NewSession(r *Renderer, settle time.Duration, emit func(Result)) *Session {
	if settle < 0 {
		settle = 0
	}
	return &Session{r: r, settle: settle, emit: emit}
}

// Update schedules a render of text once no newer Update arrives within the
// settle delay.
func (s *Session) Update(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.seq++
	seq := s.seq
	s.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.timer = time.AfterFunc(s.settle, func() { s.run(ctx, seq, text) })
}

// Close cancels any pending render. No results are emitted afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopLocked()
}

func (s *Session) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Session) run(ctx context.Context, seq uint64, text string) {
	out, err := s.r.RenderFrom(ctx, Text(text), "")
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || ctx.Err() != nil || seq <= s.delivered {
		return
	}
	s.delivered = seq
	s.emit(Result{Seq: seq, HTML: out})
}
