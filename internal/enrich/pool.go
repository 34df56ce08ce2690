package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// TaskState is the observable lifecycle of one queued enrichment.
type TaskState string

const (
	TaskQueued  TaskState = "queued"
	TaskRunning TaskState = "running"
	TaskDone    TaskState = "done"
	TaskFailed  TaskState = "failed"
)

// Task is a snapshot of one pool task.
type Task struct {
	ID         string    `json:"id"`
	LeadID     string    `json:"lead_id"`
	State      TaskState `json:"state"`
	Error      string    `json:"error,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Pool runs enrichments on a bounded set of workers with per-task state, so a
// lead stuck in "enriching" is detectable rather than silently lost.
type Pool struct {
	queue chan string

	mu     sync.Mutex
	tasks  map[string]*Task
	closed bool

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewPool starts workers goroutines draining the queue. run is called once
// per task; its error marks the task failed.
func NewPool(workers, queueSize int, run func(ctx context.Context, leadID string) error) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:  make(chan string, queueSize),
		tasks:  make(map[string]*Task),
		cancel: cancel,
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for taskID := range p.queue {
				p.setState(taskID, TaskRunning, "")
				leadID := p.leadID(taskID)
				if err := run(ctx, leadID); err != nil {
					zap.L().Warn("enrich pool: task failed",
						zap.String("task_id", taskID),
						zap.String("lead_id", leadID),
						zap.Error(err),
					)
					p.setState(taskID, TaskFailed, err.Error())
				} else {
					p.setState(taskID, TaskDone, "")
				}
			}
		}()
	}
	return p
}

// Enqueue adds a lead to the queue without blocking. It fails when the pool
// is closed or the queue is full. The send happens under the same mutex
// Close holds while closing the channel, so Enqueue can never send on a
// closed queue.
func (p *Pool) Enqueue(leadID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", eris.New("enrich pool: closed")
	}
	id := uuid.New().String()
	select {
	case p.queue <- id:
	default:
		return "", eris.New("enrich pool: queue full")
	}
	p.tasks[id] = &Task{
		ID:         id,
		LeadID:     leadID,
		State:      TaskQueued,
		EnqueuedAt: time.Now().UTC(),
	}
	return id, nil
}

// Task returns a snapshot of one task.
func (p *Pool) Task(id string) (Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Snapshot returns copies of all tracked tasks.
func (p *Pool) Snapshot() []Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Task, 0, len(p.tasks))
	for _, t := range p.tasks {
		out = append(out, *t)
	}
	return out
}

// Pending reports how many tasks are queued or running.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, t := range p.tasks {
		if t.State == TaskQueued || t.State == TaskRunning {
			n++
		}
	}
	return n
}

// Close stops accepting work and waits for in-flight tasks to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
}

func (p *Pool) setState(taskID string, state TaskState, errMsg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.tasks[taskID]
	if !ok {
		return
	}
	t.State = state
	t.Error = errMsg
	if state == TaskDone || state == TaskFailed {
		t.FinishedAt = time.Now().UTC()
	}
}

func (p *Pool) leadID(taskID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.tasks[taskID]; ok {
		return t.LeadID
	}
	return ""
}
