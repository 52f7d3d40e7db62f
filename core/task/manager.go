package task

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// 错误定义。
var (
	ErrJobNotFound   = errors.New("task: 作业不存在")
	ErrInvalidStatus = errors.New("task: 无效的作业状态")
)

// JobFunc 作业执行体。返回 nil 之前应通过 job.SetResult 记录结果。
type JobFunc func(ctx context.Context, job *Job) error

// Manager 作业管理器，负责调度与生命周期管理。
type Manager struct {
	mu        sync.RWMutex
	jobs      map[string]*Job
	callbacks []ProgressCallback
	cancels   map[string]context.CancelFunc

	maxConcurrent int
	semaphore     chan struct{}
	wg            sync.WaitGroup
}

// ManagerOption 管理器配置选项。
type ManagerOption func(*Manager)

// WithMaxConcurrent 设置最大并发数。
func WithMaxConcurrent(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.maxConcurrent = n
		}
	}
}

// NewManager 创建作业管理器。
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		jobs:          make(map[string]*Job),
		callbacks:     make([]ProgressCallback, 0),
		cancels:       make(map[string]context.CancelFunc),
		maxConcurrent: 2, // 默认最大并发数
	}
	for _, opt := range opts {
		opt(m)
	}
	m.semaphore = make(chan struct{}, m.maxConcurrent)
	return m
}

func generateID() string {
	return uuid.New().String()
}

// CreateJob 创建作业（内部使用）。
func (m *Manager) CreateJob(jobType JobType) *Job {
	job := NewJob(generateID(), jobType)
	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()
	return job
}

// Submit 创建并异步执行作业，返回作业 ID。
// 超出并发上限的作业保持 pending，直到有空位。
func (m *Manager) Submit(ctx context.Context, jobType JobType, fn JobFunc) string {
	job := m.CreateJob(jobType)
	runCtx, cancel := context.WithCancel(ctx)
	m.registerCancel(job.ID, cancel)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.unregisterCancel(job.ID)
		defer cancel()

		if err := m.acquireSemaphore(runCtx); err != nil {
			m.finishJob(job, err)
			return
		}
		defer m.releaseSemaphore()

		if job.GetStatus() != JobStatusPending {
			return
		}
		job.SetStatus(JobStatusRunning)
		m.notifyProgress(job)

		m.finishJob(job, fn(runCtx, job))
	}()
	return job.ID
}

// finishJob 将作业置为终态并广播。取消优先于失败。
func (m *Manager) finishJob(job *Job, err error) {
	switch {
	case job.GetStatus() == JobStatusCanceled:
	case err == nil:
		if job.GetStatus() != JobStatusCompleted {
			job.SetStatus(JobStatusCompleted)
		}
	case errors.Is(err, context.Canceled):
		job.SetStatus(JobStatusCanceled)
	default:
		job.SetError(err)
	}
	m.notifyProgress(job)
}

// GetJob 获取作业。
func (m *Manager) GetJob(jobID string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

// ListJobs 列出所有作业。
func (m *Manager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		result = append(result, job.Clone())
	}
	return result
}

// ListJobsByStatus 按状态列出作业。
func (m *Manager) ListJobsByStatus(status JobStatus) []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*Job, 0)
	for _, job := range m.jobs {
		if job.GetStatus() == status {
			result = append(result, job.Clone())
		}
	}
	return result
}

// RemoveJob 移除作业，仅允许移除终态作业。
func (m *Manager) RemoveJob(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if !job.GetStatus().Terminal() {
		return ErrInvalidStatus
	}
	delete(m.jobs, jobID)
	delete(m.cancels, jobID)
	return nil
}

// Cancel 取消作业。
func (m *Manager) Cancel(jobID string) error {
	m.mu.Lock()
	job, ok := m.jobs[jobID]
	cancel, hasCancel := m.cancels[jobID]
	m.mu.Unlock()

	if !ok {
		return ErrJobNotFound
	}
	if job.GetStatus().Terminal() {
		return ErrInvalidStatus
	}

	job.SetStatus(JobStatusCanceled)
	if hasCancel {
		cancel()
	}
	m.notifyProgress(job)
	return nil
}

// Subscribe 订阅进度更新。
func (m *Manager) Subscribe(callback ProgressCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// Wait 阻塞直到所有已提交作业结束，用于退出前收尾。
func (m *Manager) Wait() {
	m.wg.Wait()
}

// notifyProgress 通知进度更新。
func (m *Manager) notifyProgress(job *Job) {
	m.mu.RLock()
	callbacks := make([]ProgressCallback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.RUnlock()

	clone := job.Clone()
	for _, cb := range callbacks {
		cb(clone)
	}
}

func (m *Manager) acquireSemaphore(ctx context.Context) error {
	select {
	case m.semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) releaseSemaphore() {
	<-m.semaphore
}

func (m *Manager) registerCancel(jobID string, cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancels[jobID] = cancel
}

func (m *Manager) unregisterCancel(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cancels, jobID)
}
