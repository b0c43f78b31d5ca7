package lecture

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/m-mizutani/lectern/pkg/model"
	"github.com/m-mizutani/lectern/pkg/usecase/annotate"
	"github.com/m-mizutani/lectern/pkg/usecase/note"
	"github.com/m-mizutani/lectern/pkg/utils/logging"
)

// Session is the state of one recording episode. Begin starts a new episode
// under a fresh epoch; work captured under an older epoch is discarded on
// publish and its context is cancelled.
type Session struct {
	mu        sync.Mutex
	epoch     uint64
	active    bool
	startedAt time.Time
	lines     []model.Line
	seen      map[string]struct{}
	note      *model.Note

	ctx    context.Context
	cancel context.CancelFunc

	seq     *model.BlockSequence
	builder *annotate.Builder
	trigger *note.Trigger
}

func NewSession() *Session {
	return &Session{
		seen:    make(map[string]struct{}),
		seq:     model.NewBlockSequence(0),
		builder: annotate.NewBuilder(),
		trigger: note.NewTrigger(),
		ctx:     context.Background(),
		cancel:  func() {},
	}
}

// Begin invalidates the previous episode and starts a new active one. The
// returned context carries the epoch in its logger and is cancelled by the
// next Begin or by Close.
func (s *Session) Begin(ctx context.Context) (context.Context, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	s.active = true
	s.startedAt = time.Now()
	s.lines = nil
	s.seen = make(map[string]struct{})
	s.note = nil
	s.builder = annotate.NewBuilder()
	s.seq.Reset(s.epoch)
	s.trigger.Reset()

	// Cancel after the sequence moved on, so abandoned work sees a stale epoch
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(logging.WithAttrs(ctx, "epoch", s.epoch))
	return s.ctx, s.epoch
}

// End marks the episode inactive; its state stays readable until the next Begin
func (s *Session) End() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	return s.epoch
}

// Close cancels work still running for the current episode
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
}

// Append adds a line when the episode is active and the text has not been
// seen in it. It returns the line and the epoch it was appended under.
func (s *Session) Append(text string) (model.Line, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return model.Line{}, s.epoch, false
	}
	if _, ok := s.seen[text]; ok {
		return model.Line{}, s.epoch, false
	}

	line := model.Line{Text: text, CapturedAt: time.Now()}
	s.seen[text] = struct{}{}
	s.lines = append(s.lines, line)
	return line, s.epoch, true
}

// Lines returns the lines of the episode. The result is never modified.
func (s *Session) Lines() []model.Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clip(s.lines)
}

// SetNote replaces the note when epoch is current
func (s *Session) SetNote(epoch uint64, n *model.Note) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return false
	}
	s.note = n
	return true
}

func (s *Session) Note() *model.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.note
}

func (s *Session) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// Context returns the context of the current episode
func (s *Session) Context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Session) Sequence() *model.BlockSequence { return s.seq }
func (s *Session) Trigger() *note.Trigger         { return s.trigger }

// Builder returns the block builder of the current episode
func (s *Session) Builder() *annotate.Builder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.builder
}
