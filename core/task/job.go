// Package task 跟踪客户端发起的长耗时分析作业。
package task

import (
	"sync"
	"time"
)

// JobType 作业类型。
type JobType int

const (
	// JobTypeUpload 数据集上传。
	JobTypeUpload JobType = iota
	// JobTypeProcess 数据清洗。
	JobTypeProcess
	// JobTypeEDA 探索性分析。
	JobTypeEDA
	// JobTypeTrain 模型训练。
	JobTypeTrain
)

// String 返回作业类型的字符串表示。
func (t JobType) String() string {
	switch t {
	case JobTypeUpload:
		return "upload"
	case JobTypeProcess:
		return "process"
	case JobTypeEDA:
		return "eda"
	case JobTypeTrain:
		return "train"
	default:
		return "unknown"
	}
}

// JobStatus 作业状态。
type JobStatus int

const (
	// JobStatusPending 等待中。
	JobStatusPending JobStatus = iota
	// JobStatusRunning 运行中。
	JobStatusRunning
	// JobStatusCompleted 已完成。
	JobStatusCompleted
	// JobStatusFailed 失败。
	JobStatusFailed
	// JobStatusCanceled 已取消。
	JobStatusCanceled
)

// String 返回作业状态的字符串表示。
func (s JobStatus) String() string {
	switch s {
	case JobStatusPending:
		return "pending"
	case JobStatusRunning:
		return "running"
	case JobStatusCompleted:
		return "completed"
	case JobStatusFailed:
		return "failed"
	case JobStatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Terminal 判断作业是否处于终态。
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCanceled
}

// Job 表示一个服务端分析作业的本地跟踪记录。
type Job struct {
	mu sync.RWMutex

	ID        string    // 作业唯一标识
	Type      JobType   // 作业类型
	Status    JobStatus // 作业状态
	CreatedAt time.Time // 创建时间
	UpdatedAt time.Time // 更新时间

	Stage   string // 当前阶段描述
	Dataset string // 关联数据集 ID（可空）

	Result any   // 作业结果（完成后有效）
	Error  error // 作业错误
}

// NewJob 创建新作业。
func NewJob(id string, jobType JobType) *Job {
	now := time.Now()
	return &Job{
		ID:        id,
		Type:      jobType,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetStatus 设置作业状态。
func (j *Job) SetStatus(status JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.UpdatedAt = time.Now()
}

// GetStatus 获取作业状态。
func (j *Job) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetStage 更新当前阶段描述。
func (j *Job) SetStage(stage string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Stage = stage
	j.UpdatedAt = time.Now()
}

// GetStage 获取当前阶段描述。
func (j *Job) GetStage() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Stage
}

// SetResult 记录结果并标记完成。
func (j *Job) SetResult(result any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Result = result
	j.Status = JobStatusCompleted
	j.UpdatedAt = time.Now()
}

// GetResult 获取作业结果。
func (j *Job) GetResult() any {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Result
}

// SetError 记录错误并标记失败。
func (j *Job) SetError(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Error = err
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
}

// GetError 获取作业错误。
func (j *Job) GetError() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Error
}

// Clone 返回作业的副本（用于安全传递给回调）。
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return &Job{
		ID:        j.ID,
		Type:      j.Type,
		Status:    j.Status,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
		Stage:     j.Stage,
		Dataset:   j.Dataset,
		Result:    j.Result,
		Error:     j.Error,
	}
}

// ProgressCallback 进度回调函数类型。
type ProgressCallback func(job *Job)
