package server

import (
	"errors"
	"fmt"

	"github.com/chazu/stackowey/vm"
)

// ErrWorkerStopped is returned by Do once Stop has been called.
var ErrWorkerStopped = errors.New("server: interpreter worker stopped")

// vmRequest is one closure queued for the worker.
type vmRequest struct {
	fn   func(*vm.Interpreter) any
	done chan vmResult
}

// vmResult carries a closure's value back to Do.
type vmResult struct {
	value any
	err   error
}

// VMWorker owns an Interpreter and runs closures against it one at a time.
// LSP handlers run concurrently, so they reach the interpreter only via Do.
type VMWorker struct {
	interp   *vm.Interpreter
	requests chan vmRequest
	quit     chan struct{}
}

// NewVMWorker starts a worker for interp.
func NewVMWorker(interp *vm.Interpreter) *VMWorker {
	w := &VMWorker{
		interp:   interp,
		requests: make(chan vmRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *VMWorker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute turns a panic in fn into vmResult.err.
func (w *VMWorker) execute(fn func(*vm.Interpreter) any) vmResult {
	var result vmResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				result.err = fmt.Errorf("interpreter panic: %v", r)
			}
		}()
		result.value = fn(w.interp)
	}()
	return result
}

// Do runs fn on the worker and waits for its value. It returns
// ErrWorkerStopped if the worker shuts down first.
func (w *VMWorker) Do(fn func(*vm.Interpreter) any) (any, error) {
	req := vmRequest{
		fn:   fn,
		done: make(chan vmResult, 1),
	}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
	select {
	case result := <-req.done:
		return result.value, result.err
	case <-w.quit:
		return nil, ErrWorkerStopped
	}
}

// Stop ends the worker loop. Repeated calls are no-ops.
func (w *VMWorker) Stop() {
	select {
	case <-w.quit:
	default:
		close(w.quit)
	}
}
