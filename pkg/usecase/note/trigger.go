package note

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
)

// BatchSize is the number of new lines that triggers a regeneration while
// recording
const BatchSize = 8

// StopAction is the decision taken on the recording-stopped edge
type StopAction int

const (
	// StopNone means there is nothing to regenerate or save
	StopNone StopAction = iota
	// StopRegenerate means a final regeneration over all lines must run
	StopRegenerate
	// StopFinalize means the current note is saved as is
	StopFinalize
)

func (a StopAction) String() string {
	switch a {
	case StopNone:
		return "none"
	case StopRegenerate:
		return "regenerate"
	case StopFinalize:
		return "finalize"
	default:
		return "unknown"
	}
}

// Ticket is handed out for an accepted regeneration. UpTo is the number of
// lines, counted from the start of the session, the regeneration covers.
type Ticket struct {
	UpTo  int
	round uint64
}

// Trigger decides when the note is regenerated. At most one regeneration is
// in flight; triggers arriving meanwhile are suppressed without advancing the
// processed line count.
type Trigger struct {
	mu        sync.Mutex
	processed int
	round     uint64
	inFlight  chan struct{}
}

func NewTrigger() *Trigger {
	return &Trigger{}
}

// Observe evaluates the periodic rule for the current line count. When it
// returns true, the caller must regenerate over ticket.UpTo lines and call
// Done with the ticket afterwards.
func (t *Trigger) Observe(total int) (Ticket, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.inFlight != nil || total-t.processed < BatchSize {
		return Ticket{}, false
	}
	return t.accept(total), true
}

// Stop evaluates the stop edge. Callers wait for a running regeneration with
// Wait before calling Stop; while one is still in flight Stop returns StopNone.
func (t *Trigger) Stop(total int, hasNote bool) (StopAction, Ticket) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.inFlight != nil:
		return StopNone, Ticket{}
	case total > t.processed:
		return StopRegenerate, t.accept(total)
	case hasNote:
		return StopFinalize, Ticket{}
	default:
		return StopNone, Ticket{}
	}
}

func (t *Trigger) accept(total int) Ticket {
	t.processed = total
	t.inFlight = make(chan struct{})
	return Ticket{UpTo: total, round: t.round}
}

// Done releases the in-flight slot taken by tk. Tickets from before the
// last Reset are ignored.
func (t *Trigger) Done(tk Ticket) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if tk.round != t.round || t.inFlight == nil {
		return
	}
	close(t.inFlight)
	t.inFlight = nil
}

// Wait blocks until no regeneration is in flight
func (t *Trigger) Wait(ctx context.Context) error {
	t.mu.Lock()
	ch := t.inFlight
	t.mu.Unlock()

	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return goerr.Wrap(ctx.Err(), "interrupted while waiting for note regeneration")
	}
}

// Reset starts a new session: the processed count returns to zero and any
// in-flight regeneration is forgotten
func (t *Trigger) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.processed = 0
	t.round++
	if t.inFlight != nil {
		close(t.inFlight)
		t.inFlight = nil
	}
}

// Processed returns the line count folded into the latest regeneration
func (t *Trigger) Processed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.processed
}

func (t *Trigger) InFlight() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inFlight != nil
}
