package queue

import (
	"container/heap"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Handler executes one task. Progress updates go through the reporter;
// the returned value becomes the task result.
type Handler func(ctx context.Context, payload json.RawMessage, report func(Progress)) (any, error)

// Options configures the engine.
type Options struct {
	// Workers is the number of concurrent task executors.
	Workers int
}

// Engine runs typed tasks on a bounded worker pool with priority
// ordering. Tasks are kept in memory for status polling; expiry is the
// caller's concern.
type Engine struct {
	logger   zerolog.Logger
	workers  int
	handlers map[TaskType]Handler

	mu      sync.Mutex
	cond    *sync.Cond
	pending taskHeap
	tasks   map[string]*task
	seq     uint64
	closed  bool

	wg sync.WaitGroup
}

func NewEngine(logger zerolog.Logger, opts Options) *Engine {
	workers := opts.Workers
	if workers <= 0 {
		workers = 5
	}
	e := &Engine{
		logger:   logger,
		workers:  workers,
		handlers: make(map[TaskType]Handler),
		tasks:    make(map[string]*task),
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Register binds a handler to a task type. Registration happens during
// wiring, before Start.
func (e *Engine) Register(taskType TaskType, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("handler for %s is nil", taskType)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.handlers[taskType]; exists {
		return fmt.Errorf("handler for %s is already registered", taskType)
	}
	e.handlers[taskType] = handler
	return nil
}

// Start launches the worker pool. Workers drain until ctx is cancelled;
// in-flight handlers run to completion so consumed AI usage is not
// discarded.
func (e *Engine) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()
		e.cond.Broadcast()
	}()

	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go e.worker(ctx, i)
	}
}

// Wait blocks until every worker has exited.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Submit enqueues work and returns its task id immediately.
func (e *Engine) Submit(taskType TaskType, payload json.RawMessage, priority int) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return "", fmt.Errorf("engine is shut down")
	}
	if _, ok := e.handlers[taskType]; !ok {
		return "", fmt.Errorf("no handler registered for task type %q", taskType)
	}

	e.seq++
	t := &task{
		id:        uuid.NewString(),
		taskType:  taskType,
		payload:   payload,
		priority:  priority,
		seq:       e.seq,
		status:    TaskStatusPending,
		createdAt: time.Now().UTC(),
	}
	e.tasks[t.id] = t
	heap.Push(&e.pending, t)
	e.cond.Signal()

	e.logger.Debug().Str("task_id", t.id).Str("task_type", string(taskType)).Int("priority", priority).Msg("task submitted")
	return t.id, nil
}

// Status returns a snapshot of the task, or false when the id is unknown.
func (e *Engine) Status(id string) (Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tasks[id]
	if !ok {
		return Snapshot{}, false
	}
	return t.snapshot(), true
}

// Cancel marks a pending task cancelled. Cancellation is cooperative:
// already-active tasks run to completion and Cancel returns false.
func (e *Engine) Cancel(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tasks[id]
	if !ok || t.status != TaskStatusPending {
		return false
	}
	now := time.Now().UTC()
	t.status = TaskStatusCancelled
	t.finishedAt = &now
	// The heap entry is discarded lazily when a worker pops it.
	return true
}

func (e *Engine) worker(ctx context.Context, id int) {
	defer e.wg.Done()
	for {
		t := e.next()
		if t == nil {
			return
		}

		handler := e.handlers[t.taskType]
		report := func(p Progress) {
			e.mu.Lock()
			t.progress = p
			e.mu.Unlock()
		}

		e.logger.Debug().Int("worker", id).Str("task_id", t.id).Str("task_type", string(t.taskType)).Msg("task started")
		result, err := handler(ctx, t.payload, report)

		e.mu.Lock()
		now := time.Now().UTC()
		t.finishedAt = &now
		if err != nil {
			t.status = TaskStatusFailed
			t.err = err.Error()
		} else {
			t.status = TaskStatusCompleted
			t.result = result
		}
		e.mu.Unlock()

		if err != nil {
			e.logger.Error().Err(err).Str("task_id", t.id).Str("task_type", string(t.taskType)).Msg("task failed")
		} else {
			e.logger.Info().Str("task_id", t.id).Str("task_type", string(t.taskType)).Msg("task completed")
		}
	}
}

// next blocks until a runnable task is available or the engine shuts
// down, skipping entries cancelled while queued.
func (e *Engine) next() *task {
	e.mu.Lock()
	defer e.mu.Unlock()
	for {
		for e.pending.Len() > 0 {
			t := heap.Pop(&e.pending).(*task)
			if t.status != TaskStatusPending {
				continue
			}
			now := time.Now().UTC()
			t.status = TaskStatusActive
			t.startedAt = &now
			return t
		}
		if e.closed {
			return nil
		}
		e.cond.Wait()
	}
}

// taskHeap orders by priority (higher first), then submission order.
type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(*task)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}
