package lecture

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/adapter"
	"github.com/m-mizutani/lectern/pkg/model"
	"github.com/m-mizutani/lectern/pkg/policy"
	"github.com/m-mizutani/lectern/pkg/repository"
	"github.com/m-mizutani/lectern/pkg/usecase/annotate"
	"github.com/m-mizutani/lectern/pkg/usecase/note"
	"github.com/m-mizutani/lectern/pkg/utils/logging"
	"github.com/m-mizutani/lectern/pkg/utils/retry"
)

var (
	ErrAlreadyRecording = goerr.New("recording is already active")
	ErrNotRecording     = goerr.New("recording is not active")
)

// NoteFunc receives every note accepted into the session
type NoteFunc func(ctx context.Context, n *model.Note)

// Recorder drives one recording session at a time: it polls the line
// source, feeds the annotation and note pipelines and persists the result
// when recording stops.
type Recorder struct {
	source    adapter.LineSource
	repo      repository.Repository
	storage   adapter.Storage
	filter    *policy.LineFilter
	generator *note.Generator
	queue     *annotate.Queue
	worker    *annotate.Worker
	session   *Session

	userID        string
	pollInterval  time.Duration
	persistPolicy retry.Policy
	onNote        NoteFunc

	annotateOpts []annotate.Option
	noteOpts     []note.Option

	saveMu  sync.Mutex
	pending *pendingSave
}

type Option func(*Recorder)

func WithUserID(userID string) Option {
	return func(r *Recorder) {
		r.userID = userID
	}
}

// WithStorage archives conversation entries in object storage instead of
// storing them inline
func WithStorage(storage adapter.Storage) Option {
	return func(r *Recorder) {
		r.storage = storage
	}
}

func WithLineFilter(filter *policy.LineFilter) Option {
	return func(r *Recorder) {
		r.filter = filter
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// WithPersistPolicy bounds repository and storage calls
func WithPersistPolicy(p retry.Policy) Option {
	return func(r *Recorder) {
		r.persistPolicy = p
	}
}

func WithAnnotateOptions(opts ...annotate.Option) Option {
	return func(r *Recorder) {
		r.annotateOpts = append(r.annotateOpts, opts...)
	}
}

func WithNoteOptions(opts ...note.Option) Option {
	return func(r *Recorder) {
		r.noteOpts = append(r.noteOpts, opts...)
	}
}

func WithOnNote(fn NoteFunc) Option {
	return func(r *Recorder) {
		r.onNote = fn
	}
}

func New(gemini adapter.Gemini, source adapter.LineSource, repo repository.Repository, opts ...Option) *Recorder {
	r := &Recorder{
		source:        source,
		repo:          repo,
		session:       NewSession(),
		queue:         annotate.NewQueue(),
		pollInterval:  2 * time.Second,
		persistPolicy: retry.Default,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.generator = note.NewGenerator(gemini, r.noteOpts...)
	r.worker = annotate.NewWorker(gemini, r.session.Sequence(), r.queue, r.annotateOpts...)
	return r
}

// Start begins a new session. ctx bounds the background work of the session.
func (r *Recorder) Start(ctx context.Context) error {
	if r.session.Active() {
		return goerr.Wrap(ErrAlreadyRecording, "cannot start recording", goerr.V("epoch", r.session.Epoch()))
	}

	if err := r.source.Start(ctx); err != nil {
		return goerr.Wrap(err, "failed to start line source")
	}

	r.saveMu.Lock()
	if r.pending != nil && !r.pending.done() {
		logging.From(ctx).Warn("discarding unsaved session",
			"conversation_id", r.pending.conversationID(),
			"note_id", r.pending.noteID())
	}
	r.pending = nil
	r.saveMu.Unlock()

	sessionCtx, _ := r.session.Begin(ctx)
	if n := r.worker.Clear(); n > 0 {
		logging.From(sessionCtx).Debug("dropped pending blocks of previous session", "count", n)
	}

	logging.From(sessionCtx).Info("recording started")
	return nil
}

// Ingest admits one transcribed line into the active session
func (r *Recorder) Ingest(ctx context.Context, text string) error {
	if !r.session.Active() {
		logging.From(ctx).Debug("line ignored, not recording", "text", text)
		return nil
	}

	admitted, ok, err := r.filter.Apply(ctx, policy.Input{
		Text:  text,
		Index: len(r.session.Lines()),
		Epoch: r.session.Epoch(),
	})
	if err != nil {
		return goerr.Wrap(err, "failed to apply line policy", goerr.V("text", text))
	}
	if !ok || admitted == "" {
		logging.From(ctx).Debug("line rejected by policy", "text", text)
		return nil
	}
	text = admitted

	line, epoch, ok := r.session.Append(text)
	if !ok {
		return nil
	}

	if blk, completed := r.session.Builder().Ingest(r.session.Sequence(), epoch, line); completed {
		r.queue.Enqueue(annotate.Job{
			Block: blk,
			Epoch: epoch,
			Done:  r.session.Context().Done(),
		})
		logging.From(ctx).Debug("block completed", "block_id", blk.ID, "epoch", epoch)
	}

	r.observeNote(epoch)
	return nil
}

// Poll reads the line source once. A SourceUnavailable error changes no state.
func (r *Recorder) Poll(ctx context.Context) error {
	text, err := r.source.Poll(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to poll line source")
	}
	if text == "" {
		return nil
	}
	return r.Ingest(ctx, text)
}

// Run consumes the annotation queue and polls the line source while
// recording, until ctx is done
func (r *Recorder) Run(ctx context.Context) error {
	go r.worker.Run(ctx)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.session.Close()
			return nil
		case <-ticker.C:
		}

		if !r.session.Active() {
			continue
		}
		if err := r.Poll(ctx); err != nil {
			if errors.Is(err, adapter.ErrSourceUnavailable) {
				logging.From(ctx).Warn("line source unavailable, retrying on next poll", "error", err)
				continue
			}
			logging.From(ctx).Error("failed to poll", "error", err)
		}
	}
}

// observeNote runs the periodic note rule for the current line count
func (r *Recorder) observeNote(epoch uint64) {
	lines := r.session.Lines()
	tk, ok := r.session.Trigger().Observe(len(lines))
	if !ok {
		return
	}

	ctx := r.session.Context()
	go func() {
		r.regenerate(ctx, epoch, lines[:tk.UpTo])
		r.session.Trigger().Done(tk)

		// Lines that arrived while the regeneration was running
		if r.session.Active() && r.session.Epoch() == epoch {
			r.observeNote(epoch)
		}
	}()
}

func (r *Recorder) regenerate(ctx context.Context, epoch uint64, lines []model.Line) {
	logger := logging.From(ctx)
	logger.Debug("regenerating note", "lines", len(lines))

	n, err := r.generator.Generate(ctx, lines)
	if err != nil {
		if errors.Is(err, note.ErrParseFailure) {
			logger.Warn("note response could not be parsed, waiting for next trigger", "error", err)
		} else {
			logger.Warn("note generation failed", "error", err)
		}
		return
	}

	if !r.session.SetNote(epoch, n) {
		logger.Debug("note from previous session discarded")
		return
	}

	logger.Info("note updated", "lines", len(lines), "topic", n.Topic)
	if r.onNote != nil {
		r.onNote(ctx, n)
	}
}

// StopResult describes what happened when recording stopped
type StopResult struct {
	Action         note.StopAction
	ConversationID model.ConversationID
	NoteID         model.NoteID
}

// Stop ends the session: it drains the annotation queue, applies the stop
// rule of the note trigger and persists the conversation and note. On a
// persistence failure the session stays available to Save.
func (r *Recorder) Stop(ctx context.Context) (*StopResult, error) {
	if !r.session.Active() {
		return nil, goerr.Wrap(ErrNotRecording, "cannot stop recording")
	}

	if err := r.source.Stop(ctx); err != nil {
		logging.From(ctx).Warn("failed to stop line source", "error", err)
	}
	epoch := r.session.End()
	// The session logger already carries the epoch
	ctx = logging.With(ctx, logging.From(r.session.Context()))

	if err := r.worker.WaitIdle(ctx); err != nil {
		return nil, goerr.Wrap(err, "failed to drain annotations")
	}
	if err := r.session.Trigger().Wait(ctx); err != nil {
		return nil, goerr.Wrap(err, "failed to wait for note regeneration")
	}

	var (
		lines  []model.Line
		action note.StopAction
		tk     note.Ticket
	)
	for {
		lines = r.session.Lines()
		action, tk = r.session.Trigger().Stop(len(lines), r.session.Note() != nil)
		// A regeneration may have been accepted right before the session ended
		if action != note.StopNone || !r.session.Trigger().InFlight() {
			break
		}
		if err := r.session.Trigger().Wait(ctx); err != nil {
			return nil, goerr.Wrap(err, "failed to wait for note regeneration")
		}
	}
	logging.From(ctx).Info("recording stopped", "lines", len(lines), "note_action", action.String())

	if action == note.StopRegenerate {
		r.regenerate(ctx, epoch, lines[:tk.UpTo])
		r.session.Trigger().Done(tk)
	}

	result := &StopResult{Action: action}

	r.saveMu.Lock()
	r.pending = r.newPendingSave(ctx, lines)
	r.saveMu.Unlock()

	saved, err := r.Save(ctx)
	if saved != nil {
		result.ConversationID = saved.ConversationID
		result.NoteID = saved.NoteID
	}
	if err != nil {
		return result, err
	}
	return result, nil
}

// Close cancels background work of the current session
func (r *Recorder) Close() {
	r.session.Close()
}

// Blocks returns the current block sequence snapshot
func (r *Recorder) Blocks() []model.Entry {
	return r.session.Sequence().Snapshot()
}

// Note returns the latest note of the session, if any
func (r *Recorder) Note() *model.Note {
	return r.session.Note()
}

// Status is a point-in-time view of the recorder
type Status struct {
	Epoch         uint64
	Active        bool
	StartedAt     time.Time
	Lines         int
	Blocks        int
	Queued        int
	Worker        annotate.State
	DrainingBlock int64
	NoteProcessed int
	NoteInFlight  bool
	HasNote       bool
	Unsaved       bool
}

func (r *Recorder) Status() Status {
	state, blockID := r.worker.State()

	r.saveMu.Lock()
	unsaved := r.pending != nil && !r.pending.done()
	r.saveMu.Unlock()

	return Status{
		Epoch:         r.session.Epoch(),
		Active:        r.session.Active(),
		StartedAt:     r.session.StartedAt(),
		Lines:         len(r.session.Lines()),
		Blocks:        len(model.Blocks(r.Blocks())),
		Queued:        r.queue.Len(),
		Worker:        state,
		DrainingBlock: blockID,
		NoteProcessed: r.session.Trigger().Processed(),
		NoteInFlight:  r.session.Trigger().InFlight(),
		HasNote:       r.session.Note() != nil,
		Unsaved:       unsaved,
	}
}
