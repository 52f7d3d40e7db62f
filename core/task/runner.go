package task

import (
	"context"
	"errors"
	"io"

	"github.com/socialpulse/desktop/core/pulse"
)

// Runner 把 pulse 接口调用包装成可跟踪的后台作业。
type Runner struct {
	client  *pulse.Client
	manager *Manager
}

// NewRunner 创建作业执行器。
func NewRunner(client *pulse.Client, manager *Manager) *Runner {
	if manager == nil {
		manager = NewManager()
	}
	return &Runner{client: client, manager: manager}
}

// Manager 返回底层作业管理器。
func (r *Runner) Manager() *Manager {
	return r.manager
}

func (r *Runner) checkReady() error {
	if r == nil || r.client == nil {
		return errors.New("task: Runner 未初始化")
	}
	return nil
}

// SubmitUpload 异步上传数据集。结果为 *pulse.UploadResult。
func (r *Runner) SubmitUpload(ctx context.Context, filename string, data io.Reader) (string, error) {
	if err := r.checkReady(); err != nil {
		return "", err
	}
	id := r.manager.Submit(ctx, JobTypeUpload, func(ctx context.Context, job *Job) error {
		job.SetStage("上传中")
		rsp, err := r.client.UploadDataset(ctx, filename, data)
		if err != nil {
			return err
		}
		job.Dataset = rsp.Dataset.ID
		job.SetResult(rsp)
		return nil
	})
	return id, nil
}

// SubmitProcess 异步清洗激活数据集。结果为 *pulse.ProcessResult。
func (r *Runner) SubmitProcess(ctx context.Context, opts pulse.ProcessOptions) (string, error) {
	if err := r.checkReady(); err != nil {
		return "", err
	}
	id := r.manager.Submit(ctx, JobTypeProcess, func(ctx context.Context, job *Job) error {
		job.SetStage("清洗中")
		rsp, err := r.client.ProcessData(ctx, opts)
		if err != nil {
			return err
		}
		job.SetResult(rsp)
		return nil
	})
	return id, nil
}

// SubmitEDA 异步生成探索性分析报告。结果为 *pulse.EDAReport。
func (r *Runner) SubmitEDA(ctx context.Context) (string, error) {
	if err := r.checkReady(); err != nil {
		return "", err
	}
	id := r.manager.Submit(ctx, JobTypeEDA, func(ctx context.Context, job *Job) error {
		job.SetStage("分析中")
		rsp, err := r.client.GenerateEDA(ctx)
		if err != nil {
			return err
		}
		job.SetResult(rsp)
		return nil
	})
	return id, nil
}

// SubmitTrain 异步训练模型。结果为 *pulse.TrainResult。
func (r *Runner) SubmitTrain(ctx context.Context, modelType string) (string, error) {
	if err := r.checkReady(); err != nil {
		return "", err
	}
	id := r.manager.Submit(ctx, JobTypeTrain, func(ctx context.Context, job *Job) error {
		job.SetStage("训练中")
		rsp, err := r.client.Train(ctx, modelType)
		if err != nil {
			return err
		}
		job.SetResult(rsp)
		return nil
	})
	return id, nil
}
