package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"merodocs-http-service/pkg/logger"
)

var (
	// ErrQueueFull 队列已满
	ErrQueueFull = errors.New("task queue is full")
	// ErrQueueStopped 队列已停止
	ErrQueueStopped = errors.New("task queue is stopped")
)

// Task 后台任务；Run 的错误只记录日志，不会返回给提交者
type Task struct {
	Name    string
	Fields  logger.Fields
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Manager 固定数量的 worker 消费有界队列
type Manager struct {
	workers int
	tasks   chan Task
	mu      sync.RWMutex
	stopped bool
	started bool
	wg      sync.WaitGroup
	// OnDrop 任务被丢弃时回调
	OnDrop func(Task, error)
}

// NewManager creates a new queue manager
func NewManager(workers, size int) *Manager {
	if workers <= 0 {
		workers = 4
	}
	if size <= 0 {
		size = 256
	}
	return &Manager{
		workers: workers,
		tasks:   make(chan Task, size),
	}
}

// Start starts the workers. Tasks run with a context detached from the
// request that submitted them.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.stopped {
		return
	}
	m.started = true

	logger.WithFields(logger.Fields{"worker_count": m.workers}).Info("Starting queue workers")
	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.work(i + 1)
	}
}

// Submit 非阻塞提交
func (m *Manager) Submit(task Task) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.stopped {
		m.drop(task, ErrQueueStopped)
		return ErrQueueStopped
	}

	select {
	case m.tasks <- task:
		return nil
	default:
		m.drop(task, ErrQueueFull)
		return ErrQueueFull
	}
}

func (m *Manager) drop(task Task, err error) {
	logger.WithFields(task.Fields).WithField("task", task.Name).WithError(err).Warn("task dropped")
	if m.OnDrop != nil {
		m.OnDrop(task, err)
	}
}

// Stop 停止接收新任务，执行完已排队的任务后返回
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	close(m.tasks)
	started := m.started
	m.mu.Unlock()

	if !started {
		// 未启动时直接在当前协程排空
		for task := range m.tasks {
			run(0, task)
		}
		return
	}

	m.wg.Wait()
	logger.Info("Queue manager stopped")
}

func (m *Manager) work(id int) {
	defer m.wg.Done()
	for task := range m.tasks {
		run(id, task)
	}
}

func run(workerID int, task Task) {
	ctx := context.Background()
	if task.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}

	entry := logger.WithFields(task.Fields).WithField("task", task.Name).WithField("worker_id", workerID)

	defer func() {
		if r := recover(); r != nil {
			entry.WithField("panic", r).Error("task panicked")
		}
	}()

	start := time.Now()
	if err := task.Run(ctx); err != nil {
		entry.WithError(err).Error("task failed")
		return
	}
	entry.WithField("duration_ms", time.Since(start).Milliseconds()).Debug("task completed")
}
