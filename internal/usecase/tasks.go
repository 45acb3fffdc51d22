package usecase

import (
	"context"
	"log"
	"sync"
)

// taskRunner runs summary and retranslation work off the caller's goroutine.
// Results are delivered by the task itself through the event sink.
type taskRunner struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *log.Logger
	wg     sync.WaitGroup
}

func newTaskRunner(logger *log.Logger) *taskRunner {
	ctx, cancel := context.WithCancel(context.Background())
	return &taskRunner{ctx: ctx, cancel: cancel, logger: logger}
}

func (r *taskRunner) Go(name string, fn func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				r.logger.Printf("[TASKS]: %s panicked: %v", name, p)
			}
		}()
		fn(r.ctx)
	}()
}

// Wait blocks until every submitted task has returned.
func (r *taskRunner) Wait() {
	r.wg.Wait()
}

// Close cancels running tasks and waits for them.
func (r *taskRunner) Close() {
	r.cancel()
	r.wg.Wait()
}
