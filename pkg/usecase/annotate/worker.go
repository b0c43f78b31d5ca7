package annotate

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/adapter"
	"github.com/m-mizutani/lectern/pkg/model"
	"github.com/m-mizutani/lectern/pkg/utils/logging"
	"github.com/m-mizutani/lectern/pkg/utils/retry"
)

// DefaultInstruction is sent with every block
const DefaultInstruction = "You are an assistant helping students during a class by explaining lecture transcriptions. Give answers in 4 sentences."

var (
	// ErrStreamInterrupted is reported when a fragment stream fails after it
	// has started; the partial annotation stays published
	ErrStreamInterrupted = goerr.New("annotation stream interrupted")

	errStaleEpoch = goerr.New("session epoch changed")
)

// CompleteFunc receives the final annotation of a block. err is nil or wraps
// ErrStreamInterrupted or the last stream error.
type CompleteFunc func(ctx context.Context, block model.AnnotationBlock, ann model.Annotation, err error)

// Worker is the single consumer of the annotation queue. It elaborates one
// block at a time and merges streamed fragments into the block sequence.
type Worker struct {
	gemini      adapter.Gemini
	seq         *model.BlockSequence
	queue       *Queue
	machine     Machine
	instruction string
	policy      retry.Policy
	onComplete  CompleteFunc

	mu      sync.Mutex
	active  bool
	waiters []chan struct{}
}

type Option func(*Worker)

func WithInstruction(instruction string) Option {
	return func(w *Worker) {
		if instruction != "" {
			w.instruction = instruction
		}
	}
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(w *Worker) {
		w.policy = p
	}
}

func WithOnComplete(fn CompleteFunc) Option {
	return func(w *Worker) {
		w.onComplete = fn
	}
}

func NewWorker(gemini adapter.Gemini, seq *model.BlockSequence, queue *Queue, opts ...Option) *Worker {
	w := &Worker{
		gemini:      gemini,
		seq:         seq,
		queue:       queue,
		instruction: DefaultInstruction,
		policy:      retry.Default,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State reports the worker state machine
func (w *Worker) State() (State, int64) {
	return w.machine.State()
}

// Run consumes the queue until ctx is done
func (w *Worker) Run(ctx context.Context) {
	for {
		for w.Step(ctx) {
		}

		select {
		case <-ctx.Done():
			return
		case <-w.queue.Ready():
		}
	}
}

// Step pops the head job and processes it to completion. It returns false
// when the queue was empty.
func (w *Worker) Step(ctx context.Context) bool {
	w.mu.Lock()
	job, ok := w.queue.pop()
	w.active = ok
	w.mu.Unlock()

	if !ok {
		w.releaseIfIdle()
		return false
	}
	defer func() {
		w.mu.Lock()
		w.active = false
		w.mu.Unlock()
		w.releaseIfIdle()
	}()

	if job.Epoch != w.seq.Epoch() {
		logging.From(ctx).Debug("drop block from previous session",
			"block_id", job.Block.ID,
			"epoch", job.Epoch)
		return true
	}

	if err := w.machine.Begin(job.Block.ID); err != nil {
		// Step is only called by one goroutine, so this is a programming error
		logging.From(ctx).Error("annotation worker state violated", "error", err)
		return true
	}
	w.drain(ctx, job)
	if err := w.machine.Finish(job.Block.ID); err != nil {
		logging.From(ctx).Error("annotation worker state violated", "error", err)
	}
	return true
}

func (w *Worker) drain(ctx context.Context, job Job) {
	logger := logging.From(ctx).With("block_id", job.Block.ID)

	// Placeholder until the first fragment arrives
	if !w.publish(job, "") {
		logger.Debug("block no longer in session, skipped")
		return
	}

	streamCtx, cancel := jobContext(ctx, job)
	defer cancel()

	var (
		text     strings.Builder
		received bool
	)
	err := retry.Do(streamCtx, w.policy, "annotate", func(ctx context.Context) error {
		for fragment, err := range w.gemini.GenerateStream(ctx, w.instruction, job.Block.Text()) {
			if err != nil {
				if received {
					return retry.Permanent(goerr.Wrap(ErrStreamInterrupted, err.Error()))
				}
				return err
			}
			received = true
			text.WriteString(fragment)
			if !w.publish(job, text.String()) {
				return retry.Permanent(errStaleEpoch)
			}
		}
		return nil
	})

	if errors.Is(err, errStaleEpoch) || job.Epoch != w.seq.Epoch() {
		logger.Debug("session reset during stream, discarded remaining fragments")
		return
	}
	if err != nil {
		logger.Warn("annotation stream failed, keeping partial text",
			"error", err,
			"partial_length", text.Len())
	}

	if w.onComplete != nil {
		w.onComplete(ctx, job.Block, model.Annotation{ForID: job.Block.ID, Text: text.String()}, err)
	}
}

// jobContext derives the stream context of job, cancelled when job.Done closes
func jobContext(ctx context.Context, job Job) (context.Context, context.CancelFunc) {
	streamCtx, cancel := context.WithCancel(ctx)
	if job.Done == nil {
		return streamCtx, cancel
	}

	go func() {
		select {
		case <-job.Done:
			cancel()
		case <-streamCtx.Done():
		}
	}()
	return streamCtx, cancel
}

// publish merges text into the sequence under the job's epoch
func (w *Worker) publish(job Job, text string) bool {
	return w.seq.Update(job.Epoch, func(entries []model.Entry) ([]model.Entry, bool) {
		return Merge(entries, job.Block.ID, text)
	})
}

// WaitIdle blocks until the queue is empty and no block is draining
func (w *Worker) WaitIdle(ctx context.Context) error {
	w.mu.Lock()
	if w.idle() {
		w.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	w.waiters = append(w.waiters, ch)
	w.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return goerr.Wrap(ctx.Err(), "interrupted while waiting for annotations")
	}
}

// Clear drops pending jobs, e.g. on session reset
func (w *Worker) Clear() int {
	n := w.queue.Clear()
	w.releaseIfIdle()
	return n
}

// idle must be called with w.mu held
func (w *Worker) idle() bool {
	return !w.active && w.queue.Len() == 0
}

func (w *Worker) releaseIfIdle() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.idle() {
		return
	}
	for _, ch := range w.waiters {
		close(ch)
	}
	w.waiters = nil
}
