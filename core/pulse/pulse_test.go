package pulse

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/socialpulse/desktop/core/auth"
	"github.com/socialpulse/desktop/core/httpclient"
	"github.com/socialpulse/desktop/core/store"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestClient(rt roundTripFunc, opts ...Option) (*Client, *store.MemoryStore[*auth.Credential]) {
	credStore := store.NewMemoryStore[*auth.Credential]()
	_ = credStore.SaveTokens(&auth.Credential{AccessToken: "A1", RefreshToken: "R1"})
	base := []Option{
		WithHTTPClient(httpclient.NewClient(httpclient.WithHTTPClient(&http.Client{Transport: rt}))),
		WithBaseURL("https://api.test"),
	}
	return NewClient(credStore, append(base, opts...)...), credStore
}

func TestListDatasets(t *testing.T) {
	cli, _ := newTestClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/datasets/" {
			t.Fatalf("意外路径: %s", req.URL.Path)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer A1" {
			t.Fatalf("Authorization 错误: %q", got)
		}
		return jsonResponse(http.StatusOK, `[
			{"id":"ds-1","original_filename":"jan.csv","row_count":100,"column_count":8,"is_active":false},
			{"id":"ds-2","original_filename":"feb.csv","row_count":200,"column_count":8,"is_active":true}
		]`), nil
	})

	datasets, err := cli.ListDatasets(context.Background())
	if err != nil {
		t.Fatalf("ListDatasets 失败: %v", err)
	}
	if len(datasets) != 2 {
		t.Fatalf("期望 2 个数据集, 得到 %d", len(datasets))
	}
	if datasets[1].ID != "ds-2" || !datasets[1].IsActive {
		t.Fatalf("激活数据集解析错误: %+v", datasets[1])
	}
}

func TestActiveDataset(t *testing.T) {
	cli, _ := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `[
			{"id":"ds-1","is_active":false},
			{"id":"ds-2","is_active":true}
		]`), nil
	})

	active, err := cli.ActiveDataset(context.Background())
	if err != nil {
		t.Fatalf("ActiveDataset 失败: %v", err)
	}
	if active == nil || active.ID != "ds-2" {
		t.Fatalf("期望 ds-2, 得到 %+v", active)
	}
}

func TestActiveDatasetNone(t *testing.T) {
	cli, _ := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `[]`), nil
	})

	active, err := cli.ActiveDataset(context.Background())
	if err != nil {
		t.Fatalf("ActiveDataset 失败: %v", err)
	}
	if active != nil {
		t.Fatalf("期望 nil, 得到 %+v", active)
	}
}

func TestActivateDataset(t *testing.T) {
	cli, _ := newTestClient(func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodPost || req.URL.Path != "/datasets/ds-9/activate/" {
			t.Fatalf("意外请求: %s %s", req.Method, req.URL.Path)
		}
		return jsonResponse(http.StatusOK, `{"message":"Dataset activated.","dataset":{"id":"ds-9","is_active":true}}`), nil
	})

	rsp, err := cli.ActivateDataset(context.Background(), "ds-9")
	if err != nil {
		t.Fatalf("ActivateDataset 失败: %v", err)
	}
	if rsp.Dataset.ID != "ds-9" || !rsp.Dataset.IsActive {
		t.Fatalf("响应错误: %+v", rsp)
	}
}

func TestActivateDatasetNotFound(t *testing.T) {
	cli, _ := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusNotFound, `{"error":"Dataset not found."}`), nil
	})

	_, err := cli.ActivateDataset(context.Background(), "ds-404")
	var pe *PulseError
	if !errors.As(err, &pe) || pe.Code != ErrCodeDatasetNotFound {
		t.Fatalf("期望 ErrCodeDatasetNotFound, 得到 %v", err)
	}
}

func TestUploadDataset(t *testing.T) {
	cli, _ := newTestClient(func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodPost || req.URL.Path != "/upload/" {
			t.Fatalf("意外请求: %s %s", req.Method, req.URL.Path)
		}
		mediaType, params, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/form-data" {
			t.Fatalf("Content-Type 错误: %v %v", mediaType, err)
		}
		reader := multipart.NewReader(req.Body, params["boundary"])
		part, err := reader.NextPart()
		if err != nil {
			t.Fatalf("解析 multipart 失败: %v", err)
		}
		if part.FormName() != "file" || part.FileName() != "posts.csv" {
			t.Fatalf("表单字段错误: %s %s", part.FormName(), part.FileName())
		}
		content, _ := io.ReadAll(part)
		if string(content) != "platform,reach\nInstagram,100\n" {
			t.Fatalf("文件内容错误: %q", content)
		}
		return jsonResponse(http.StatusCreated, `{
			"dataset":{"id":"ds-new","original_filename":"posts.csv","row_count":1,"column_count":2,"is_active":true},
			"preview":[{"platform":"Instagram","reach":100}],
			"dataHealth":{"percentage":100,"totalRows":1,"totalColumns":2,"nullCount":0}
		}`), nil
	})

	rsp, err := cli.UploadDataset(context.Background(), "posts.csv", strings.NewReader("platform,reach\nInstagram,100\n"))
	if err != nil {
		t.Fatalf("UploadDataset 失败: %v", err)
	}
	if rsp.Dataset.ID != "ds-new" || !rsp.Dataset.IsActive {
		t.Fatalf("数据集解析错误: %+v", rsp.Dataset)
	}
	if len(rsp.Preview) != 1 || rsp.DataHealth.Percentage != 100 {
		t.Fatalf("预览/健康度解析错误: %+v", rsp)
	}
}

func TestUploadRejectsNonCSV(t *testing.T) {
	cli, _ := newTestClient(func(req *http.Request) (*http.Response, error) {
		t.Fatal("不应发起网络请求")
		return nil, nil
	})

	_, err := cli.UploadDataset(context.Background(), "notes.txt", strings.NewReader("x"))
	var pe *PulseError
	if !errors.As(err, &pe) || pe.Code != ErrCodeUploadRejected {
		t.Fatalf("期望 ErrCodeUploadRejected, 得到 %v", err)
	}
}

func TestUploadRejectsOversized(t *testing.T) {
	cli, _ := newTestClient(func(req *http.Request) (*http.Response, error) {
		t.Fatal("不应发起网络请求")
		return nil, nil
	}, WithMaxUploadSize(8))

	_, err := cli.UploadDataset(context.Background(), "big.csv", strings.NewReader("123456789"))
	var pe *PulseError
	if !errors.As(err, &pe) || pe.Code != ErrCodeUploadRejected {
		t.Fatalf("期望 ErrCodeUploadRejected, 得到 %v", err)
	}
}

func TestProcessData(t *testing.T) {
	cli, _ := newTestClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/process/" {
			t.Fatalf("意外路径: %s", req.URL.Path)
		}
		var payload map[string]bool
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		if !payload["removeNulls"] || payload["deduplicate"] || !payload["standardizeDates"] {
			t.Fatalf("清洗选项错误: %v", payload)
		}
		return jsonResponse(http.StatusOK, `{
			"message":"Data processed successfully.",
			"preprocessing":{"id":1,"cleaning_steps_applied":["remove_nulls","standardize_dates"],"rows_removed":5,"rows_after":95},
			"preview":[],
			"dataHealth":{"percentage":100,"totalRows":95,"totalColumns":8,"nullCount":0}
		}`), nil
	})

	rsp, err := cli.ProcessData(context.Background(), ProcessOptions{RemoveNulls: true, StandardizeDates: true})
	if err != nil {
		t.Fatalf("ProcessData 失败: %v", err)
	}
	if rsp.Preprocessing.RowsRemoved != 5 || rsp.Preprocessing.RowsAfter != 95 {
		t.Fatalf("清洗记录解析错误: %+v", rsp.Preprocessing)
	}
	if len(rsp.Preprocessing.CleaningStepsApplied) != 2 {
		t.Fatalf("清洗步骤解析错误: %v", rsp.Preprocessing.CleaningStepsApplied)
	}
}

func TestGenerateEDA(t *testing.T) {
	cli, _ := newTestClient(func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodGet || req.URL.Path != "/eda/" {
			t.Fatalf("意外请求: %s %s", req.Method, req.URL.Path)
		}
		return jsonResponse(http.StatusOK, `{"eda":{"id":3,"report_json":{"table":{"n":100}},"generated_at":"2024-02-01T10:00:00Z"}}`), nil
	})

	report, err := cli.GenerateEDA(context.Background())
	if err != nil {
		t.Fatalf("GenerateEDA 失败: %v", err)
	}
	if report.ID != 3 || !strings.Contains(string(report.ReportJSON), `"n":100`) {
		t.Fatalf("报告解析错误: %+v", report)
	}
}

func TestTrain(t *testing.T) {
	cli, _ := newTestClient(func(req *http.Request) (*http.Response, error) {
		var payload map[string]string
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		if payload["model_type"] != "both" {
			t.Fatalf("model_type 错误: %v", payload)
		}
		return jsonResponse(http.StatusOK, `{
			"message":"Training complete.",
			"results":{
				"regression":{"title":"LightGBM Regression","metrics":{"rmse":1.2},"training_samples":80,"test_samples":20},
				"classification":{"error":"not enough classes"}
			}
		}`), nil
	})

	rsp, err := cli.Train(context.Background(), "")
	if err != nil {
		t.Fatalf("Train 失败: %v", err)
	}
	if rsp.Results["regression"].TrainingSamples != 80 {
		t.Fatalf("回归结果解析错误: %+v", rsp.Results["regression"])
	}
	if rsp.Results["classification"].Error == "" {
		t.Fatal("期望分类结果携带错误信息")
	}
}

func TestTrainRejectsUnknownModelType(t *testing.T) {
	cli, _ := newTestClient(func(req *http.Request) (*http.Response, error) {
		t.Fatal("不应发起网络请求")
		return nil, nil
	})

	_, err := cli.Train(context.Background(), "quantum")
	var pe *PulseError
	if !errors.As(err, &pe) || pe.Code != ErrCodeInvalidRequest {
		t.Fatalf("期望 ErrCodeInvalidRequest, 得到 %v", err)
	}
}

func TestPredictInsights(t *testing.T) {
	cli, _ := newTestClient(func(req *http.Request) (*http.Response, error) {
		var payload map[string]string
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		if payload["platform"] != "Instagram" || payload["content_type"] != "Reel" {
			t.Fatalf("过滤条件错误: %v", payload)
		}
		return jsonResponse(http.StatusOK, `{
			"insights":{
				"best_times":[{"hour":18,"avg_engagement":4.2}],
				"best_day":{"day":"Friday","avg_engagement":3.9},
				"best_caption_length":"Medium (50-150 chars)",
				"predicted_engagement":4.1,
				"predicted_reach":12000
			},
			"filters":{"platform":"Instagram","content_type":"Reel"}
		}`), nil
	})

	rsp, err := cli.PredictInsights(context.Background(), InsightsRequest{Platform: "Instagram", ContentType: "Reel"})
	if err != nil {
		t.Fatalf("PredictInsights 失败: %v", err)
	}
	if len(rsp.Insights.BestTimes) != 1 || rsp.Insights.BestTimes[0].Hour != 18 {
		t.Fatalf("best_times 解析错误: %+v", rsp.Insights.BestTimes)
	}
	if rsp.Insights.PredictedEngagement == nil || *rsp.Insights.PredictedEngagement != 4.1 {
		t.Fatalf("predicted_engagement 解析错误: %+v", rsp.Insights.PredictedEngagement)
	}
	if rsp.Filters.Platform != "Instagram" {
		t.Fatalf("filters 解析错误: %+v", rsp.Filters)
	}
}

func TestDashboard(t *testing.T) {
	cli, _ := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{
			"pieData":[{"name":"Reel","value":4.5}],
			"dayBarData":[{"day":"Mon","engagement":3.1}],
			"lineData":[],
			"hourData":[{"hour":"18:00","posts":42}],
			"kpis":{"totalReach":123456,"avgEngagement":3.7,"topHashtag":"#social","peakTime":"18:00"}
		}`), nil
	})

	rsp, err := cli.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("Dashboard 失败: %v", err)
	}
	if len(rsp.PieData) != 1 || rsp.PieData[0].Name != "Reel" {
		t.Fatalf("pieData 解析错误: %+v", rsp.PieData)
	}
	if rsp.KPIs.TotalReach != 123456 || rsp.KPIs.TopHashtag != "#social" {
		t.Fatalf("kpis 解析错误: %+v", rsp.KPIs)
	}
}

func TestFilterOptions(t *testing.T) {
	cli, _ := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"platforms":["Instagram","TikTok"],"content_types":["Reel","Story"]}`), nil
	})

	rsp, err := cli.FilterOptions(context.Background())
	if err != nil {
		t.Fatalf("FilterOptions 失败: %v", err)
	}
	if len(rsp.Platforms) != 2 || rsp.ContentTypes[1] != "Story" {
		t.Fatalf("解析错误: %+v", rsp)
	}
}

func TestNoActiveDatasetMapped(t *testing.T) {
	cli, _ := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadRequest, `{"error":"No active dataset. Please upload and activate a dataset first."}`), nil
	})

	_, err := cli.Dashboard(context.Background())
	var pe *PulseError
	if !errors.As(err, &pe) || pe.Code != ErrCodeNoActiveDataset {
		t.Fatalf("期望 ErrCodeNoActiveDataset, 得到 %v", err)
	}
	if pe.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("HTTPStatus 错误: %d", pe.HTTPStatus)
	}
}

// TestSessionRecovery 覆盖完整的过期恢复链路：登录换取令牌，
// 受保护请求遇到 401 后用刷新令牌换取新访问令牌并重放原请求。
func TestSessionRecovery(t *testing.T) {
	var protectedCalls, refreshCalls int

	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		switch req.URL.Path {
		case "/auth/login/":
			var payload map[string]string
			if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
				t.Fatalf("解析登录请求失败: %v", err)
			}
			if payload["email"] != "a@b.com" || payload["password"] != "x" {
				t.Fatalf("登录凭据错误: %v", payload)
			}
			return jsonResponse(http.StatusOK, `{
				"user":{"id":1,"email":"a@b.com","username":"ana"},
				"tokens":{"access":"A1","refresh":"R1"}
			}`), nil
		case "/auth/refresh/":
			refreshCalls++
			var payload map[string]string
			if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
				t.Fatalf("解析刷新请求失败: %v", err)
			}
			if payload["refresh"] != "R1" {
				t.Fatalf("刷新令牌错误: %v", payload)
			}
			return jsonResponse(http.StatusOK, `{"access":"A2"}`), nil
		case "/datasets/":
			protectedCalls++
			if protectedCalls == 1 {
				if got := req.Header.Get("Authorization"); got != "Bearer A1" {
					t.Fatalf("第一次请求 Authorization 错误: %q", got)
				}
				return jsonResponse(http.StatusUnauthorized, `{"detail":"Given token not valid for any token type","code":"token_not_valid"}`), nil
			}
			if got := req.Header.Get("Authorization"); got != "Bearer A2" {
				t.Fatalf("重试请求 Authorization 错误: %q", got)
			}
			return jsonResponse(http.StatusOK, `[{"id":"ds-1","is_active":true}]`), nil
		default:
			t.Fatalf("意外路径: %s", req.URL.Path)
			return nil, nil
		}
	})

	httpCli := func() *httpclient.Client {
		return httpclient.NewClient(httpclient.WithHTTPClient(&http.Client{Transport: transport}))
	}

	credStore := store.NewMemoryStore[*auth.Credential]()
	login := auth.NewLoginClient(httpCli(), auth.WithLoginEndpoints(auth.DefaultEndpoints("https://api.test")))
	cred, user, err := login.Login(context.Background(), auth.Credentials{Email: "a@b.com", Password: "x"})
	if err != nil {
		t.Fatalf("登录失败: %v", err)
	}
	if user == nil || user.Email != "a@b.com" {
		t.Fatalf("用户解析错误: %+v", user)
	}
	if err := credStore.SaveTokens(cred); err != nil {
		t.Fatalf("保存凭据失败: %v", err)
	}

	refresher := auth.NewTokenRefresher(httpCli(), credStore, "https://api.test/auth/refresh/")
	cli := NewClient(credStore,
		WithHTTPClient(httpCli()),
		WithBaseURL("https://api.test"),
		WithRefresher(refresher, nil),
	)

	datasets, err := cli.ListDatasets(context.Background())
	if err != nil {
		t.Fatalf("ListDatasets 失败: %v", err)
	}
	if len(datasets) != 1 || datasets[0].ID != "ds-1" {
		t.Fatalf("数据集解析错误: %+v", datasets)
	}
	if protectedCalls != 2 {
		t.Fatalf("期望恰好 2 次受保护请求, 得到 %d", protectedCalls)
	}
	if refreshCalls != 1 {
		t.Fatalf("期望恰好 1 次刷新请求, 得到 %d", refreshCalls)
	}

	saved, err := credStore.LoadTokens()
	if err != nil {
		t.Fatalf("读取凭据失败: %v", err)
	}
	if saved.AccessToken != "A2" || saved.RefreshToken != "R1" {
		t.Fatalf("凭据未按预期更新: %+v", saved)
	}
}

// TestSessionExpiredHook 验证刷新失败时原始 401 上抛且触发失效回调。
func TestSessionExpiredHook(t *testing.T) {
	var expired bool

	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		switch req.URL.Path {
		case "/auth/refresh/":
			return jsonResponse(http.StatusUnauthorized, `{"detail":"Token is invalid or expired","code":"token_not_valid"}`), nil
		case "/datasets/":
			return jsonResponse(http.StatusUnauthorized, `{"detail":"Given token not valid for any token type","code":"token_not_valid"}`), nil
		default:
			t.Fatalf("意外路径: %s", req.URL.Path)
			return nil, nil
		}
	})

	credStore := store.NewMemoryStore[*auth.Credential]()
	_ = credStore.SaveTokens(&auth.Credential{AccessToken: "A1", RefreshToken: "R1"})

	refresher := auth.NewTokenRefresher(
		httpclient.NewClient(httpclient.WithHTTPClient(&http.Client{Transport: transport})),
		credStore,
		"https://api.test/auth/refresh/",
	)
	cli := NewClient(credStore,
		WithHTTPClient(httpclient.NewClient(httpclient.WithHTTPClient(&http.Client{Transport: transport}))),
		WithBaseURL("https://api.test"),
		WithRefresher(refresher, func() { expired = true }),
	)

	_, err := cli.ListDatasets(context.Background())
	var pe *PulseError
	if !errors.As(err, &pe) || pe.Code != ErrCodeUnauthorized {
		t.Fatalf("期望 ErrCodeUnauthorized, 得到 %v", err)
	}
	if pe.HTTPStatus != http.StatusUnauthorized {
		t.Fatalf("HTTPStatus 错误: %d", pe.HTTPStatus)
	}
	if !expired {
		t.Fatal("期望触发会话失效回调")
	}
}
