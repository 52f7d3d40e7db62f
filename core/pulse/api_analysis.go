package pulse

import (
	"context"
	"errors"
)

// ProcessData 按给定清洗选项预处理激活数据集。
func (c *Client) ProcessData(ctx context.Context, opts ProcessOptions) (*ProcessResult, error) {
	if err := c.checkReady(); err != nil {
		return nil, err
	}
	var rsp ProcessResult
	if err := c.postJSON(ctx, "/process/", opts, &rsp); err != nil {
		return nil, toPulseError(err)
	}
	return &rsp, nil
}

// GenerateEDA 针对激活数据集生成探索性分析报告。
func (c *Client) GenerateEDA(ctx context.Context) (*EDAReport, error) {
	if err := c.checkReady(); err != nil {
		return nil, err
	}
	var rsp edaResponse
	if err := c.get(ctx, "/eda/", nil, &rsp); err != nil {
		return nil, toPulseError(err)
	}
	return &rsp.EDA, nil
}

// Train 在激活数据集上训练模型。modelType 取
// ModelTypeRegression、ModelTypeClassification 或 ModelTypeBoth。
func (c *Client) Train(ctx context.Context, modelType string) (*TrainResult, error) {
	if err := c.checkReady(); err != nil {
		return nil, err
	}
	if modelType == "" {
		modelType = ModelTypeBoth
	}
	switch modelType {
	case ModelTypeRegression, ModelTypeClassification, ModelTypeBoth:
	default:
		return nil, WrapPulseError(ErrCodeInvalidRequest, "未知的模型类型: "+modelType, errors.New("pulse: 模型类型无效"))
	}
	payload := struct {
		ModelType string `json:"model_type"`
	}{ModelType: modelType}
	var rsp TrainResult
	if err := c.postJSON(ctx, "/train/", payload, &rsp); err != nil {
		return nil, toPulseError(err)
	}
	return &rsp, nil
}

// PredictInsights 按平台与内容类型过滤生成动态洞察，空值表示不过滤。
func (c *Client) PredictInsights(ctx context.Context, req InsightsRequest) (*InsightsResult, error) {
	if err := c.checkReady(); err != nil {
		return nil, err
	}
	var rsp InsightsResult
	if err := c.postJSON(ctx, "/predict/insights/", req, &rsp); err != nil {
		return nil, toPulseError(err)
	}
	return &rsp, nil
}

// Dashboard 获取激活数据集的仪表盘聚合数据。
func (c *Client) Dashboard(ctx context.Context) (*Dashboard, error) {
	if err := c.checkReady(); err != nil {
		return nil, err
	}
	var rsp Dashboard
	if err := c.get(ctx, "/dashboard/", nil, &rsp); err != nil {
		return nil, toPulseError(err)
	}
	return &rsp, nil
}

// FilterOptions 获取激活数据集中的可选过滤值。
func (c *Client) FilterOptions(ctx context.Context) (*FilterOptions, error) {
	if err := c.checkReady(); err != nil {
		return nil, err
	}
	var rsp FilterOptions
	if err := c.get(ctx, "/filters/", nil, &rsp); err != nil {
		return nil, toPulseError(err)
	}
	return &rsp, nil
}
