package model

import "time"

// Dataset 描述一份已上传的数据集。
type Dataset struct {
	ID               string    `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	RowCount         int       `json:"row_count"`
	ColumnCount      int       `json:"column_count"`
	Columns          []string  `json:"columns"`
	IsActive         bool      `json:"is_active"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

// Handle 返回会话层使用的最小句柄。
func (d *Dataset) Handle() *DatasetHandle {
	if d == nil {
		return nil
	}
	return &DatasetHandle{
		ID:       d.ID,
		Name:     d.OriginalFilename,
		IsActive: d.IsActive,
	}
}

// DatasetHandle 是会话层持有的数据集最小标识，
// 只用于在启动时解析当前操作的远端资源。
type DatasetHandle struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	IsActive bool   `json:"is_active"`
}

// Clone 返回句柄拷贝，避免外部修改会话内部状态。
func (h *DatasetHandle) Clone() *DatasetHandle {
	if h == nil {
		return nil
	}
	cp := *h
	return &cp
}
