package luaengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultCallTimeout bounds a single call into a script when the caller's
// context has no deadline.
const DefaultCallTimeout = 5 * time.Second

// ErrExecutorClosed is returned when calling into a script that was shut down.
var ErrExecutorClosed = errors.New("lua executor is closed")

type luaCall struct {
	ctx    context.Context
	fn     func(L *lua.LState) error
	result chan error
}

// executor serializes every operation on one Lua state through a single
// goroutine.
type executor struct {
	L       *lua.LState
	queue   chan *luaCall
	closed  atomic.Bool
	done    chan struct{}
	stopped chan struct{}

	closeOnce sync.Once
}

func newExecutor(L *lua.LState, queueSize int) *executor {
	if queueSize <= 0 {
		queueSize = 64
	}
	e := &executor{
		L:       L,
		queue:   make(chan *luaCall, queueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go e.run()
	return e
}

// run processes calls until close. It owns the Lua state and closes it on
// exit.
func (e *executor) run() {
	defer close(e.stopped)
	defer e.L.Close()

	for {
		select {
		case <-e.done:
			e.drainQueue(ErrExecutorClosed)
			return
		case call := <-e.queue:
			call.result <- e.executeCall(call)
			close(call.result)
		}
	}
}

func (e *executor) executeCall(call *luaCall) (err error) {
	if err := call.ctx.Err(); err != nil {
		return err
	}

	ctx := call.ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultCallTimeout)
		defer cancel()
	}
	e.L.SetContext(ctx)
	defer e.L.RemoveContext()

	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case error:
				err = v
			default:
				err = fmt.Errorf("lua panic: %v", v)
			}
		}
	}()
	return call.fn(e.L)
}

func (e *executor) drainQueue(err error) {
	for {
		select {
		case call := <-e.queue:
			call.result <- err
			close(call.result)
		default:
			return
		}
	}
}

// execute runs fn on the executor goroutine and waits for it. Without a
// caller deadline the wait, queueing included, is bounded by
// DefaultCallTimeout, so a call made from inside the executor fails instead
// of blocking it forever.
func (e *executor) execute(ctx context.Context, fn func(L *lua.LState) error) error {
	if e.closed.Load() {
		return ErrExecutorClosed
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultCallTimeout)
		defer cancel()
	}

	call := &luaCall{
		ctx:    ctx,
		fn:     fn,
		result: make(chan error, 1),
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrExecutorClosed
	case e.queue <- call:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err, ok := <-call.result:
		if !ok {
			return ErrExecutorClosed
		}
		return err
	case <-e.stopped:
		return ErrExecutorClosed
	}
}

// close stops the executor and waits for the state to be released.
func (e *executor) close() {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		close(e.done)
	})
	<-e.stopped
}
