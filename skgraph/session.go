package skgraph

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cdr.dev/slog"

	"github.com/stencilkit/stencilkit/lib/log"
)

var ErrSessionClosed = errors.New("session closed")

type request struct {
	fn   func(*Canvas) error
	ctx  context.Context
	done chan error
}

// Session gives a single goroutine ownership of a Canvas. Other goroutines
// submit work with Do, which runs on the owning goroutine one request at a
// time.
type Session struct {
	canvas *Canvas

	reqCh   chan *request
	closeCh chan struct{}
	doneCh  chan struct{}

	closeOnce sync.Once
	runOnce   sync.Once
}

func NewSession(c *Canvas) *Session {
	return &Session{
		canvas:  c,
		reqCh:   make(chan *request),
		closeCh: make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Run serves requests until ctx is done or Close is called. It must be
// called once.
func (s *Session) Run(ctx context.Context) error {
	started := false
	s.runOnce.Do(func() {
		started = true
	})
	if !started {
		return errors.New("session is already running")
	}
	defer close(s.doneCh)

	ctx = log.Named(ctx, "session")
	log.Debug(ctx, "session started", slog.F("canvas", s.canvas.id))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closeCh:
			return nil
		case req := <-s.reqCh:
			req.done <- s.serve(req)
		}
	}
}

func (s *Session) serve(req *request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("session request panicked: %v", r)
		}
	}()
	if err := req.ctx.Err(); err != nil {
		return err
	}
	return req.fn(s.canvas)
}

// Do runs fn against the canvas on the session goroutine and returns its
// error.
func (s *Session) Do(ctx context.Context, fn func(*Canvas) error) error {
	req := &request{fn: fn, ctx: ctx, done: make(chan error, 1)}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closeCh:
		return ErrSessionClosed
	case <-s.doneCh:
		return ErrSessionClosed
	case s.reqCh <- req:
	}
	return <-req.done
}

// Close stops Run. Pending Do calls return ErrSessionClosed.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.closeCh)
	})
}
