package annotate

import (
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/model"
)

// Job is a completed block waiting for elaboration, stamped with the session
// epoch it was enqueued under
type Job struct {
	Block model.AnnotationBlock
	Epoch uint64
	// Done is closed when the session of the job is reset. The stream of the
	// job is abandoned then. nil means the job lives as long as the worker.
	Done <-chan struct{}
}

// Queue is a FIFO of jobs. Enqueue never blocks; the consumer is woken
// through Ready.
type Queue struct {
	mu    sync.Mutex
	jobs  []Job
	ready chan struct{}
}

func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

func (q *Queue) Enqueue(job Job) {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Ready is signaled after Enqueue. A signal may cover several jobs.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Clear drops all pending jobs and returns how many were dropped
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.jobs)
	q.jobs = nil
	return n
}

func (q *Queue) pop() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return Job{}, false
	}
	job := q.jobs[0]
	q.jobs[0] = Job{}
	q.jobs = q.jobs[1:]
	return job, true
}

// State of the single annotation worker
type State int

const (
	StateIdle State = iota
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

var (
	ErrAlreadyDraining = goerr.New("worker is already draining a block")
	ErrNotDraining     = goerr.New("worker is not draining this block")
)

// Machine is the idle -> draining(block) -> idle state machine of the
// worker. At most one block is draining at a time.
type Machine struct {
	mu      sync.Mutex
	state   State
	current int64
}

// Begin moves idle -> draining(blockID)
func (m *Machine) Begin(blockID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdle {
		return goerr.Wrap(ErrAlreadyDraining, "cannot begin block",
			goerr.V("current", m.current),
			goerr.V("requested", blockID))
	}
	m.state = StateDraining
	m.current = blockID
	return nil
}

// Finish moves draining(blockID) -> idle
func (m *Machine) Finish(blockID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateDraining || m.current != blockID {
		return goerr.Wrap(ErrNotDraining, "cannot finish block",
			goerr.V("state", m.state.String()),
			goerr.V("current", m.current),
			goerr.V("requested", blockID))
	}
	m.state = StateIdle
	m.current = 0
	return nil
}

// State returns the current state and, when draining, the block ID
func (m *Machine) State() (State, int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.current
}
