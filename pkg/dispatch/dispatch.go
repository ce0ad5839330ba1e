// Package dispatch runs independent partition computations on an injected
// executor and hands their results back in submission order.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ComputerApplicationLab/algorithm-reference-library/internal/errdefs"
)

// Job is one schedulable unit of work. A Job that fails returns its error
// so that executors able to cancel can stop scheduling further jobs.
type Job func(ctx context.Context) error

// Executor runs jobs. Execute must not return before every job it started
// has returned; it may skip jobs once ctx is cancelled or a job failed.
type Executor interface {
	Execute(ctx context.Context, jobs []Job) error
}

// Serial runs jobs one after another on the calling goroutine and stops at
// the first failure.
type Serial struct{}

func (Serial) Execute(ctx context.Context, jobs []Job) error {
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := job(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Pool runs jobs on at most Workers goroutines. Zero Workers means
// GOMAXPROCS. The first failure cancels the context seen by the other jobs.
type Pool struct {
	Workers int
}

func (p Pool) Execute(ctx context.Context, jobs []Job) error {
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			return job(gctx)
		})
	}
	return g.Wait()
}

// Task computes the partial result of one partition
type Task[T any] func(ctx context.Context) (T, error)

type options struct {
	progress func(done, total int)
}

// Option configures Run
type Option func(*options)

// WithProgress calls fn after each task finishes, successfully or not.
// fn is called from a single goroutine.
func WithProgress(fn func(done, total int)) Option {
	return func(o *options) { o.progress = fn }
}

type outcome[T any] struct {
	index   int
	value   T
	err     error
	skipped bool
}

// Run submits every task to exec and waits for all of them. Results are
// stored by task index, never by completion order.
//
// The first failing task cancels the context of the others; Run then waits
// for the executor to return and reports a *errdefs.PartitionError carrying
// the failing index. No partial results are returned on failure.
func Run[T any](ctx context.Context, exec Executor, tasks []Task[T], opts ...Option) ([]T, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make(chan outcome[T], len(tasks))
	jobs := make([]Job, len(tasks))
	for i, task := range tasks {
		i, task := i, task
		jobs[i] = func(jctx context.Context) error {
			if err := jctx.Err(); err != nil {
				outcomes <- outcome[T]{index: i, err: err, skipped: true}
				return err
			}
			v, err := call(jctx, task)
			outcomes <- outcome[T]{index: i, value: v, err: err}
			if err != nil {
				cancel()
			}
			return err
		}
	}

	executed := make(chan error, 1)
	go func() {
		executed <- exec.Execute(ctx, jobs)
		close(outcomes)
	}()

	results := make([]T, len(tasks))
	reported := make([]bool, len(tasks))
	var failure, skip *errdefs.PartitionError
	done := 0
	for out := range outcomes {
		done++
		reported[out.index] = true
		switch {
		case out.skipped:
			if skip == nil {
				skip = &errdefs.PartitionError{Index: out.index, Err: out.err}
			}
		case out.err != nil:
			if failure == nil {
				failure = &errdefs.PartitionError{Index: out.index, Err: out.err}
				log.Debug().Int("partition", out.index).Err(out.err).Msg("partition failed, cancelling the rest")
			}
		default:
			results[out.index] = out.value
		}
		if o.progress != nil {
			o.progress(done, len(tasks))
		}
	}
	execErr := <-executed

	if failure != nil {
		return nil, failure
	}
	if skip != nil {
		return nil, skip
	}
	for i, ok := range reported {
		if !ok {
			err := execErr
			if err == nil {
				err = errors.New("executor returned without running the task")
			}
			return nil, &errdefs.PartitionError{Index: i, Err: err}
		}
	}
	return results, nil
}

// call runs task, turning a panic into an error
func call[T any](ctx context.Context, task Task[T]) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task(ctx)
}
