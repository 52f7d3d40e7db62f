package pulse

import (
	"encoding/json"
	"time"

	"github.com/socialpulse/desktop/core/model"
)

// MaxUploadSize 服务端接受的 CSV 上限（50MB）。
const MaxUploadSize = 50 << 20

// PreviewRow 一条样例数据，列名到原始值的映射。
type PreviewRow map[string]any

// DataHealth 数据健康度统计。
type DataHealth struct {
	Percentage   float64 `json:"percentage"`
	TotalRows    int     `json:"totalRows"`
	TotalColumns int     `json:"totalColumns"`
	NullCount    int     `json:"nullCount"`
}

// UploadResult 上传响应：数据集元信息、前 5 行预览与健康度。
type UploadResult struct {
	Dataset    model.Dataset `json:"dataset"`
	Preview    []PreviewRow  `json:"preview"`
	DataHealth DataHealth    `json:"dataHealth"`
}

// ActivateResult 激活数据集响应。
type ActivateResult struct {
	Message string        `json:"message"`
	Dataset model.Dataset `json:"dataset"`
}

// ProcessOptions 数据清洗选项。
type ProcessOptions struct {
	RemoveNulls      bool `json:"removeNulls"`
	Deduplicate      bool `json:"deduplicate"`
	StandardizeDates bool `json:"standardizeDates"`
}

// PreprocessingLog 清洗记录。
type PreprocessingLog struct {
	ID                   int       `json:"id"`
	CleaningStepsApplied []string  `json:"cleaning_steps_applied"`
	RowsRemoved          int       `json:"rows_removed"`
	RowsAfter            int       `json:"rows_after"`
	ProcessedAt          time.Time `json:"processed_at"`
}

// ProcessResult 清洗响应。
type ProcessResult struct {
	Message       string           `json:"message"`
	Preprocessing PreprocessingLog `json:"preprocessing"`
	Preview       []PreviewRow     `json:"preview"`
	DataHealth    DataHealth       `json:"dataHealth"`
}

// EDAReport 一次探索性分析记录。报告本体结构随数据集变化，保留原始 JSON。
type EDAReport struct {
	ID          int             `json:"id"`
	ReportJSON  json.RawMessage `json:"report_json"`
	GeneratedAt time.Time       `json:"generated_at"`
}

type edaResponse struct {
	EDA EDAReport `json:"eda"`
}

// ModelType 训练目标。
const (
	ModelTypeRegression     = "regression"
	ModelTypeClassification = "classification"
	ModelTypeBoth           = "both"
)

// ModelReport 单个模型的训练结果。Error 非空时其余字段无效。
type ModelReport struct {
	Title           string          `json:"title,omitempty"`
	Subtitle        string          `json:"subtitle,omitempty"`
	Metrics         json.RawMessage `json:"metrics,omitempty"`
	FeatureColumns  []string        `json:"feature_columns,omitempty"`
	ClassNames      []string        `json:"class_names,omitempty"`
	TrainingSamples int             `json:"training_samples,omitempty"`
	TestSamples     int             `json:"test_samples,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// TrainResult 训练响应，按 "regression"/"classification" 键返回各模型结果。
type TrainResult struct {
	Message string                 `json:"message"`
	Results map[string]ModelReport `json:"results"`
}

// InsightsRequest 洞察过滤条件，空值表示不过滤。
type InsightsRequest struct {
	Platform    string `json:"platform"`
	ContentType string `json:"content_type"`
}

// BestTime 单个高互动时段。
type BestTime struct {
	Hour          int     `json:"hour"`
	AvgEngagement float64 `json:"avg_engagement"`
}

// BestDay 互动率最高的星期。
type BestDay struct {
	Day           string  `json:"day"`
	AvgEngagement float64 `json:"avg_engagement"`
}

// Insights 动态洞察。数据列缺失时对应分组为空集合，
// 预测类字段在未训练模型时为空。
type Insights struct {
	BestTimes              []BestTime      `json:"best_times"`
	BestDay                BestDay         `json:"best_day"`
	BestCaptionLength      string          `json:"best_caption_length"`
	BestHashtags           json.RawMessage `json:"best_hashtags"`
	PredictedEngagement    *float64        `json:"predicted_engagement"`
	PredictedClass         *string         `json:"predicted_class"`
	PredictedReach         int             `json:"predicted_reach"`
	EngagementDistribution json.RawMessage `json:"engagement_distribution"`
	TopPosts               json.RawMessage `json:"top_posts"`
	PlatformEngagement     json.RawMessage `json:"platform_engagement"`
}

// InsightsResult 洞察响应。
type InsightsResult struct {
	Insights Insights        `json:"insights"`
	Filters  InsightsRequest `json:"filters"`
}

// NamedValue 名称/数值对，饼图数据点。
type NamedValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// DayEngagement 按星期聚合的互动率。
type DayEngagement struct {
	Day        string  `json:"day"`
	Engagement float64 `json:"engagement"`
}

// DateSeries 按月聚合的时间序列点。
type DateSeries struct {
	Date       string  `json:"date"`
	Engagement float64 `json:"engagement,omitempty"`
	Reach      int64   `json:"reach,omitempty"`
}

// HashtagReach 按话题标签聚合的平均触达。
type HashtagReach struct {
	Hashtag string `json:"hashtag"`
	Reach   int64  `json:"reach"`
}

// HourPosts 按小时聚合的发帖数。
type HourPosts struct {
	Hour  string `json:"hour"`
	Posts int    `json:"posts"`
}

// ScatterPoint 触达/互动率散点。
type ScatterPoint struct {
	Reach      int64   `json:"reach"`
	Engagement float64 `json:"engagement"`
}

// CaptionEngagement 按文案长度分档的互动率。
type CaptionEngagement struct {
	Category   string  `json:"category"`
	Engagement float64 `json:"engagement"`
}

// KPIs 仪表盘核心指标。
type KPIs struct {
	TotalReach    int64   `json:"totalReach"`
	AvgEngagement float64 `json:"avgEngagement"`
	TopHashtag    string  `json:"topHashtag"`
	PeakTime      string  `json:"peakTime"`
}

// Dashboard 仪表盘聚合数据。后端按数据列动态裁剪图表，
// 缺失的图表返回空切片。
type Dashboard struct {
	PieData     []NamedValue        `json:"pieData"`
	DayBarData  []DayEngagement     `json:"dayBarData"`
	LineData    []DateSeries        `json:"lineData"`
	HashtagData []HashtagReach      `json:"hashtagData"`
	AreaData    []DateSeries        `json:"areaData"`
	HourData    []HourPosts         `json:"hourData"`
	ScatterData []ScatterPoint      `json:"scatterData"`
	CaptionData []CaptionEngagement `json:"captionData"`
	KPIs        KPIs                `json:"kpis"`
}

// FilterOptions 激活数据集中的可选过滤值。
type FilterOptions struct {
	Platforms    []string `json:"platforms"`
	ContentTypes []string `json:"content_types"`
}
