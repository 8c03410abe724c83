package fakegpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vk/rendergraph/internal/gpu"
	"github.com/vk/rendergraph/internal/rendergraph"
)

// ErrForeignEncoder is returned by Submit for encoders this package did not
// create.
var ErrForeignEncoder = errors.New("fakegpu: encoder was not created by fakegpu")

// Wait is a semaphore wait attached to a submission.
type Wait struct {
	Semaphore gpu.Semaphore
	Stages    gpu.PipelineStageFlags
}

// Submission is one command buffer handed to a queue.
type Submission struct {
	Queue   gpu.QueueType
	Label   string
	Waits   []Wait
	Signal  gpu.Semaphore
	Encoder *Encoder
}

// Queue is an in-memory rendergraph.Queue with a timeline counter.
type Queue struct {
	mu       sync.Mutex
	typ      gpu.QueueType
	timeline uint64
	pending  []Wait

	submissions []Submission
	failSubmit  error
}

var _ rendergraph.Queue = (*Queue)(nil)

func (q *Queue) Type() gpu.QueueType { return q.typ }

func (q *Queue) RequestCommandBuffer() (rendergraph.CommandEncoder, error) {
	return &Encoder{queue: q.typ}, nil
}

func (q *Queue) Wait(sem gpu.Semaphore, stages gpu.PipelineStageFlags) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, Wait{Semaphore: sem, Stages: stages})
}

func (q *Queue) Submit(enc rendergraph.CommandEncoder) (gpu.Semaphore, error) {
	e, ok := enc.(*Encoder)
	if !ok {
		return gpu.Semaphore{}, ErrForeignEncoder
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failSubmit != nil {
		q.pending = nil
		return gpu.Semaphore{}, q.failSubmit
	}
	if err := e.Err(); err != nil {
		q.pending = nil
		return gpu.Semaphore{}, fmt.Errorf("encoder %q: %w", e.Label(), err)
	}
	q.timeline++
	sem := gpu.Semaphore{Queue: q.typ, Value: q.timeline}
	q.submissions = append(q.submissions, Submission{
		Queue:   q.typ,
		Label:   e.Label(),
		Waits:   q.pending,
		Signal:  sem,
		Encoder: e,
	})
	q.pending = nil
	return sem, nil
}

func (q *Queue) TimelineValue() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.timeline
}

// FailSubmit makes every later Submit return err. Pass nil to recover.
func (q *Queue) FailSubmit(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failSubmit = err
}

// Submissions returns a copy of everything submitted so far.
func (q *Queue) Submissions() []Submission {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Submission(nil), q.submissions...)
}

// Queues is an in-memory rendergraph.QueueTable with one queue per type.
type Queues struct {
	queues [gpu.QueueCount]*Queue
}

var _ rendergraph.QueueTable = (*Queues)(nil)

// NewQueues creates a graphics, a compute and a transfer queue.
func NewQueues() *Queues {
	qs := &Queues{}
	for i := range qs.queues {
		qs.queues[i] = &Queue{typ: gpu.QueueType(i)}
	}
	return qs
}

func (qs *Queues) Queue(t gpu.QueueType) rendergraph.Queue { return qs.queues[t] }

// Get returns the concrete queue for inspection.
func (qs *Queues) Get(t gpu.QueueType) *Queue { return qs.queues[t] }

// Submissions returns every submission across queues, grouped by queue type.
func (qs *Queues) Submissions() []Submission {
	var all []Submission
	for _, q := range qs.queues {
		all = append(all, q.Submissions()...)
	}
	return all
}

// Find returns the submission whose encoder label is label.
func (qs *Queues) Find(label string) (Submission, bool) {
	for _, s := range qs.Submissions() {
		if s.Label == label {
			return s, true
		}
	}
	return Submission{}, false
}
