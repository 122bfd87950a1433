package forward

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phil-mansfield/gravmag/voxel"
)

var (
	// ErrCancelled is returned by a task which was cancelled by its caller.
	ErrCancelled = errors.New("forward: computation cancelled")
	// ErrSuperseded is returned by a task whose snapshot was replaced by a
	// newer one before it finished.
	ErrSuperseded = errors.New("forward: computation superseded by a newer model version")
)

// IsCancellation returns true if err reports a cancelled or superseded
// computation rather than a failure.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, ErrSuperseded)
}

func cancelErr(ctx context.Context) error {
	if errors.Is(context.Cause(ctx), ErrSuperseded) {
		return ErrSuperseded
	}
	return ErrCancelled
}

// Task is one asynchronous forward computation.
type Task struct {
	id      uuid.UUID
	version uint64
	cancel  context.CancelCauseFunc
	done    chan struct{}

	resp *Response
	err  error
}

// ID returns the task's unique identifier.
func (t *Task) ID() uuid.UUID { return t.id }

// Version returns the model version the task computes.
func (t *Task) Version() uint64 { return t.version }

// Cancel stops the task. Its partial results are discarded.
func (t *Task) Cancel() { t.cancel(ErrCancelled) }

// Done is closed when the task finishes.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finishes and returns its response. A task which
// was stopped returns ErrCancelled or ErrSuperseded.
func (t *Task) Wait() (*Response, error) {
	<-t.done
	return t.resp, t.err
}

func (t *Task) finish(resp *Response, err error) {
	t.resp, t.err = resp, err
	close(t.done)
}

// Start begins computing the response of snap in the background. Any task
// already in flight is cancelled and reports ErrSuperseded. If a newer
// snapshot of the same model has already been requested, the returned task
// fails immediately with ErrSuperseded. A snapshot of a different model is
// always accepted.
func (a *Assembler) Start(ctx context.Context, snap *voxel.Snapshot) *Task {
	ctx, cancel := context.WithCancelCause(ctx)
	t := &Task{
		id:      uuid.New(),
		version: snap.Version(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	a.mu.Lock()
	if snap.ModelID() == a.newestModel && snap.Version() < a.newest {
		a.mu.Unlock()
		cancel(ErrSuperseded)
		t.finish(nil, ErrSuperseded)
		return t
	}
	a.newestModel, a.newest = snap.ModelID(), snap.Version()
	if a.task != nil {
		a.task.cancel(ErrSuperseded)
	}
	a.task = t
	a.state = Computing
	a.mu.Unlock()

	go a.run(ctx, t, snap)
	return t
}

// Compute computes the response of snap, using the cache where possible.
func (a *Assembler) Compute(ctx context.Context, snap *voxel.Snapshot) (*Response, error) {
	return a.Start(ctx, snap).Wait()
}

// Recompute computes the response of snap from scratch without reading or
// updating the cache.
func (a *Assembler) Recompute(ctx context.Context, snap *voxel.Snapshot) (*Response, error) {
	c, err := a.full(ctx, snap)
	if err != nil {
		return nil, err
	}
	return a.response(c), nil
}

func (a *Assembler) run(ctx context.Context, t *Task, snap *voxel.Snapshot) {
	start := time.Now()
	log := a.log.With(zap.Stringer("task", t.id), zap.Uint64("version", t.version))
	log.Debug("task started", zap.Int("points", len(a.points)))

	c, mode, dirty, err := a.advance(ctx, snap)

	a.mu.Lock()
	if a.task == t {
		a.task = nil
		if err == nil {
			a.state = Ready
		} else {
			a.state = Idle
		}
	}
	a.mu.Unlock()

	elapsed := zap.Duration("elapsed", time.Since(start))
	switch {
	case err == nil:
		log.Info("task finished", zap.String("mode", mode),
			zap.Int("dirty", dirty), elapsed)
		t.finish(a.response(c), nil)
	case IsCancellation(err):
		log.Debug("task stopped", zap.Error(err), elapsed)
		t.finish(nil, err)
	default:
		log.Error("task failed", zap.Error(err), elapsed)
		t.finish(nil, err)
	}
	t.cancel(nil)
}

// advance computes the cache for snap and publishes it. The cache is only
// replaced if ctx is still live and no other computation has published
// since this one read its base.
func (a *Assembler) advance(
	ctx context.Context, snap *voxel.Snapshot,
) (c *cache, mode string, dirty int, err error) {
	for {
		a.mu.Lock()
		base := a.cache
		a.mu.Unlock()

		var keys []voxel.Key
		if base != nil {
			keys, err = voxel.Diff(base.snap, snap)
		}
		if base == nil || err != nil {
			mode, dirty = "full", -1
			c, err = a.full(ctx, snap)
		} else {
			mode, dirty = "incremental", len(keys)
			c, err = a.incremental(ctx, base, snap, keys)
		}
		if err != nil {
			return nil, mode, dirty, err
		}

		if a.applyHook != nil {
			a.applyHook()
		}

		a.mu.Lock()
		if ctx.Err() != nil {
			a.mu.Unlock()
			return nil, mode, dirty, cancelErr(ctx)
		}
		if a.cache == base {
			a.cache = c
			a.mu.Unlock()
			return c, mode, dirty, nil
		}
		newer := a.cache.snap.ModelID() == snap.ModelID() &&
			a.cache.snap.Version() > snap.Version()
		a.mu.Unlock()
		if newer {
			return nil, mode, dirty, ErrSuperseded
		}
		// Another computation published first; start again from its cache.
	}
}
