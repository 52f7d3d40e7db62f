package pulse

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/socialpulse/desktop/core/model"
)

// ListDatasets 列出当前用户的全部数据集，按上传时间倒序。
func (c *Client) ListDatasets(ctx context.Context) ([]model.Dataset, error) {
	if err := c.checkReady(); err != nil {
		return nil, err
	}
	var datasets []model.Dataset
	if err := c.get(ctx, "/datasets/", nil, &datasets); err != nil {
		return nil, toPulseError(err)
	}
	return datasets, nil
}

// ActiveDataset 返回当前激活的数据集，没有则返回 nil。
func (c *Client) ActiveDataset(ctx context.Context) (*model.Dataset, error) {
	datasets, err := c.ListDatasets(ctx)
	if err != nil {
		return nil, err
	}
	for i := range datasets {
		if datasets[i].IsActive {
			return &datasets[i], nil
		}
	}
	return nil, nil
}

// ActivateDataset 将指定数据集设为激活，后续分析接口都作用于它。
func (c *Client) ActivateDataset(ctx context.Context, datasetID string) (*ActivateResult, error) {
	if err := c.checkReady(); err != nil {
		return nil, err
	}
	if datasetID == "" {
		return nil, WrapPulseError(ErrCodeInvalidRequest, "数据集 ID 不能为空", errors.New("pulse: 数据集 ID 缺失"))
	}
	var rsp ActivateResult
	if err := c.postJSON(ctx, "/datasets/"+datasetID+"/activate/", struct{}{}, &rsp); err != nil {
		return nil, toPulseError(err)
	}
	return &rsp, nil
}

// UploadDataset 上传 CSV 数据集。上传成功的数据集自动成为激活数据集。
// 客户端先做与服务端一致的校验：仅接受 .csv 且不超过 MaxUploadSize。
func (c *Client) UploadDataset(ctx context.Context, filename string, data io.Reader) (*UploadResult, error) {
	if err := c.checkReady(); err != nil {
		return nil, err
	}
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return nil, WrapPulseError(ErrCodeUploadRejected, "仅接受 CSV 文件", errors.New("pulse: 不支持的文件类型"))
	}

	content, err := io.ReadAll(io.LimitReader(data, c.maxUploadSize+1))
	if err != nil {
		return nil, WrapPulseError(ErrCodeUploadRejected, "读取文件失败", err)
	}
	if int64(len(content)) > c.maxUploadSize {
		return nil, WrapPulseError(ErrCodeUploadRejected, "文件超过 50MB 上限", errors.New("pulse: 文件过大"))
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, WrapPulseError(ErrCodeUploadRejected, "构造上传请求失败", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, WrapPulseError(ErrCodeUploadRejected, "构造上传请求失败", err)
	}
	if err := writer.Close(); err != nil {
		return nil, WrapPulseError(ErrCodeUploadRejected, "构造上传请求失败", err)
	}

	body := buf.Bytes()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/upload/"), bytes.NewReader(body))
	if err != nil {
		return nil, WrapPulseError(ErrCodeUploadRejected, "构造上传请求失败", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	var rsp UploadResult
	if err := c.http.Do(req, &rsp); err != nil {
		return nil, toPulseError(err)
	}
	return &rsp, nil
}
