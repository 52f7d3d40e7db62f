// Social Pulse 命令行客户端
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/socialpulse/desktop/core/auth"
	"github.com/socialpulse/desktop/core/crypto"
	"github.com/socialpulse/desktop/core/httpclient"
	"github.com/socialpulse/desktop/core/pulse"
	"github.com/socialpulse/desktop/core/store"
	"github.com/socialpulse/desktop/core/task"
)

const usage = `用法: pulsectl [-base URL] [-v] <命令> [参数]

会话:
  login -email X [-password Y]     登录
  register -username U -email X    注册并登录
  logout                           退出登录
  status                           查看会话状态
  profile                          查看当前用户

数据集:
  datasets                         列出数据集
  activate <dataset-id>            激活数据集
  upload <file.csv>                上传 CSV 数据集

分析:
  process [-remove-nulls] [-dedup] [-dates]   清洗激活数据集
  eda                              生成探索性分析报告
  train [-model both|regression|classification]
  insights [-platform P] [-content-type C]
  dashboard                        仪表盘聚合数据
  filters                          可选过滤值
`

// zeroLogger 将 zerolog 适配到 httpclient.Logger。
type zeroLogger struct{ l zerolog.Logger }

func (z zeroLogger) Debugf(f string, a ...any) { z.l.Debug().Msgf(f, a...) }
func (z zeroLogger) Errorf(f string, a ...any) { z.l.Error().Msgf(f, a...) }

// appConfig 本地持久化配置。
type appConfig struct {
	BaseURL string `json:"baseUrl"`
	Email   string `json:"email,omitempty"`
}

// app 汇集各组件，供子命令使用。
type app struct {
	logger    httpclient.Logger
	credStore auth.CredentialStore
	cfgStore  store.ConfigStore[*appConfig]
	cfg       *appConfig
	session   *auth.Manager
	login     *auth.LoginClient
	client    *pulse.Client
	runner    *task.Runner
}

func main() {
	baseFlag := flag.String("base", "", "服务地址，默认取本地配置或官方地址")
	verbose := flag.Bool("v", false, "输出调试日志")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	a, err := newApp(*baseFlag, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化失败: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := a.run(ctx, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "pulsectl: %v\n", err)
		os.Exit(1)
	}
}

func newApp(baseOverride string, verbose bool) (*app, error) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).With().Timestamp().Logger()
	logger := zeroLogger{l: zl}

	dir, err := configDir()
	if err != nil {
		return nil, err
	}

	key, err := credentialKey(dir)
	if err != nil {
		return nil, err
	}
	credStore, err := store.NewFileStore[*auth.Credential](
		filepath.Join(dir, "credentials.json"),
		store.WithCipherKey[*auth.Credential](key),
	)
	if err != nil {
		return nil, err
	}
	cfgStore, err := store.NewFileStore[*appConfig](filepath.Join(dir, "config.json"))
	if err != nil {
		return nil, err
	}

	cfg, err := cfgStore.LoadConfig()
	if errors.Is(err, store.ErrNotFound) {
		cfg = &appConfig{}
	} else if err != nil {
		return nil, err
	}

	baseURL := auth.DefaultBaseURL
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	if baseOverride != "" {
		baseURL = strings.TrimRight(baseOverride, "/")
		cfg.BaseURL = baseURL
	}

	endpoints := auth.DefaultEndpoints(baseURL)
	login := auth.NewLoginClient(
		httpclient.NewClient(httpclient.WithLogger(logger)),
		auth.WithLoginEndpoints(endpoints),
		auth.WithLoginLogger(logger),
	)
	refresher := auth.NewTokenRefresher(
		httpclient.NewClient(httpclient.WithLogger(logger)),
		credStore,
		endpoints.RefreshURL,
		auth.WithRefresherLogger(logger),
	)
	session := auth.NewManager(credStore,
		auth.WithAuthenticator(login),
		auth.WithManagerLogger(logger),
	)
	client := pulse.NewClient(credStore,
		pulse.WithBaseURL(baseURL),
		pulse.WithLogger(logger),
		pulse.WithRefresher(refresher, session.Expire),
	)

	a := &app{
		logger:    logger,
		credStore: credStore,
		cfgStore:  cfgStore,
		cfg:       cfg,
		session:   session,
		login:     login,
		client:    client,
		runner:    task.NewRunner(client, task.NewManager()),
	}
	// 水合需要数据集列表，client 构造晚于 session，这里补上
	auth.WithDatasetLister(client)(session)
	return a, nil
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	if err := a.session.Init(ctx); err != nil {
		return err
	}

	switch cmd {
	case "login":
		return a.cmdLogin(ctx, args)
	case "register":
		return a.cmdRegister(ctx, args)
	case "logout":
		return a.cmdLogout()
	case "status":
		return a.cmdStatus()
	case "profile":
		return a.cmdProfile(ctx)
	case "datasets":
		return a.requireAuth(func() error { return a.cmdDatasets(ctx) })
	case "activate":
		return a.requireAuth(func() error { return a.cmdActivate(ctx, args) })
	case "upload":
		return a.requireAuth(func() error { return a.cmdUpload(ctx, args) })
	case "process":
		return a.requireAuth(func() error { return a.cmdProcess(ctx, args) })
	case "eda":
		return a.requireAuth(func() error { return a.cmdEDA(ctx) })
	case "train":
		return a.requireAuth(func() error { return a.cmdTrain(ctx, args) })
	case "insights":
		return a.requireAuth(func() error { return a.cmdInsights(ctx, args) })
	case "dashboard":
		return a.requireAuth(func() error { return a.cmdDashboard(ctx) })
	case "filters":
		return a.requireAuth(func() error { return a.cmdFilters(ctx) })
	default:
		flag.Usage()
		return fmt.Errorf("未知命令: %s", cmd)
	}
}

// requireAuth 在未认证时引导去登录，与界面的路由守卫一致。
func (a *app) requireAuth(fn func() error) error {
	if !auth.Allowed(a.session.Snapshot().State) {
		return errors.New("当前未登录，请先执行 pulsectl login")
	}
	return fn()
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", a.cfg.Email, "登录邮箱")
	password := fs.String("password", "", "口令，不传则交互输入")
	if err := fs.Parse(args); err != nil {
		return err
	}
	pw := *password
	if pw == "" {
		var err error
		pw, err = promptPassword("口令: ")
		if err != nil {
			return err
		}
	}

	user, err := a.session.Login(ctx, auth.Credentials{Email: *email, Password: pw})
	if err != nil {
		return err
	}
	a.cfg.Email = *email
	if err := a.cfgStore.SaveConfig(a.cfg); err != nil {
		a.logger.Errorf("保存配置失败: %v", err)
	}
	fmt.Printf("已登录: %s (%s)\n", user.Username, user.Email)
	return a.cmdStatus()
}

func (a *app) cmdRegister(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	username := fs.String("username", "", "用户名")
	email := fs.String("email", "", "邮箱")
	password := fs.String("password", "", "口令，不传则交互输入")
	company := fs.String("company", "", "公司名")
	role := fs.String("role", "", "职位")
	if err := fs.Parse(args); err != nil {
		return err
	}
	pw := *password
	if pw == "" {
		var err error
		pw, err = promptPassword("口令: ")
		if err != nil {
			return err
		}
	}

	user, err := a.session.Register(ctx, auth.Registration{
		Username:    *username,
		Email:       *email,
		Password:    pw,
		CompanyName: *company,
		Role:        *role,
	})
	if err != nil {
		return err
	}
	a.cfg.Email = *email
	if err := a.cfgStore.SaveConfig(a.cfg); err != nil {
		a.logger.Errorf("保存配置失败: %v", err)
	}
	fmt.Printf("已注册并登录: %s (%s)\n", user.Username, user.Email)
	return nil
}

func (a *app) cmdLogout() error {
	if err := a.session.Logout(); err != nil {
		return err
	}
	fmt.Println("已退出登录")
	return nil
}

func (a *app) cmdStatus() error {
	snap := a.session.Snapshot()
	fmt.Printf("会话状态: %s\n", snap.State)
	if snap.User != nil {
		fmt.Printf("用户: %s (%s)\n", snap.User.Username, snap.User.Email)
	}
	if snap.ActiveDataset != nil {
		fmt.Printf("激活数据集: %s (%s)\n", snap.ActiveDataset.Name, snap.ActiveDataset.ID)
	}
	return nil
}

func (a *app) cmdProfile(ctx context.Context) error {
	user, err := a.client.Profile(ctx)
	if err != nil {
		return err
	}
	return printJSON(user)
}

func (a *app) cmdDatasets(ctx context.Context) error {
	datasets, err := a.client.ListDatasets(ctx)
	if err != nil {
		return err
	}
	if len(datasets) == 0 {
		fmt.Println("还没有数据集，先执行 pulsectl upload <file.csv>")
		return nil
	}
	for _, ds := range datasets {
		marker := " "
		if ds.IsActive {
			marker = "*"
		}
		fmt.Printf("%s %s  %s  %d 行 × %d 列\n", marker, ds.ID, ds.OriginalFilename, ds.RowCount, ds.ColumnCount)
	}
	return nil
}

func (a *app) cmdActivate(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("用法: pulsectl activate <dataset-id>")
	}
	rsp, err := a.client.ActivateDataset(ctx, args[0])
	if err != nil {
		return err
	}
	if err := a.session.SetActiveDataset(rsp.Dataset.Handle()); err != nil {
		return err
	}
	fmt.Printf("已激活: %s\n", rsp.Dataset.OriginalFilename)
	return nil
}

func (a *app) cmdUpload(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("用法: pulsectl upload <file.csv>")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	a.runner.Manager().Subscribe(func(job *task.Job) {
		a.logger.Debugf("作业 %s: %s %s", job.ID, job.Status, job.GetStage())
	})
	id, err := a.runner.SubmitUpload(ctx, filepath.Base(args[0]), f)
	if err != nil {
		return err
	}
	a.runner.Manager().Wait()

	job, err := a.runner.Manager().GetJob(id)
	if err != nil {
		return err
	}
	if job.Error != nil {
		return job.Error
	}
	rsp := job.Result.(*pulse.UploadResult)
	if err := a.session.SetActiveDataset(rsp.Dataset.Handle()); err != nil {
		return err
	}
	fmt.Printf("已上传: %s (%d 行 × %d 列, 健康度 %.1f%%)\n",
		rsp.Dataset.OriginalFilename, rsp.Dataset.RowCount, rsp.Dataset.ColumnCount, rsp.DataHealth.Percentage)
	return nil
}

func (a *app) cmdProcess(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	removeNulls := fs.Bool("remove-nulls", false, "移除空值行")
	dedup := fs.Bool("dedup", false, "去重")
	dates := fs.Bool("dates", false, "标准化日期")
	if err := fs.Parse(args); err != nil {
		return err
	}

	id, err := a.runner.SubmitProcess(ctx, pulse.ProcessOptions{
		RemoveNulls:      *removeNulls,
		Deduplicate:      *dedup,
		StandardizeDates: *dates,
	})
	if err != nil {
		return err
	}
	a.runner.Manager().Wait()

	job, err := a.runner.Manager().GetJob(id)
	if err != nil {
		return err
	}
	if job.Error != nil {
		return job.Error
	}
	rsp := job.Result.(*pulse.ProcessResult)
	fmt.Printf("%s 移除 %d 行，剩余 %d 行\n", rsp.Message, rsp.Preprocessing.RowsRemoved, rsp.Preprocessing.RowsAfter)
	return nil
}

func (a *app) cmdEDA(ctx context.Context) error {
	id, err := a.runner.SubmitEDA(ctx)
	if err != nil {
		return err
	}
	a.runner.Manager().Wait()

	job, err := a.runner.Manager().GetJob(id)
	if err != nil {
		return err
	}
	if job.Error != nil {
		return job.Error
	}
	report := job.Result.(*pulse.EDAReport)
	fmt.Printf("报告 #%d 生成于 %s\n", report.ID, report.GeneratedAt.Format(time.DateTime))
	return printJSON(json.RawMessage(report.ReportJSON))
}

func (a *app) cmdTrain(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	model := fs.String("model", pulse.ModelTypeBoth, "both/regression/classification")
	if err := fs.Parse(args); err != nil {
		return err
	}

	id, err := a.runner.SubmitTrain(ctx, *model)
	if err != nil {
		return err
	}
	a.runner.Manager().Wait()

	job, err := a.runner.Manager().GetJob(id)
	if err != nil {
		return err
	}
	if job.Error != nil {
		return job.Error
	}
	rsp := job.Result.(*pulse.TrainResult)
	fmt.Println(rsp.Message)
	return printJSON(rsp.Results)
}

func (a *app) cmdInsights(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("insights", flag.ContinueOnError)
	platform := fs.String("platform", "", "平台过滤")
	contentType := fs.String("content-type", "", "内容类型过滤")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rsp, err := a.client.PredictInsights(ctx, pulse.InsightsRequest{
		Platform:    *platform,
		ContentType: *contentType,
	})
	if err != nil {
		return err
	}
	return printJSON(rsp)
}

func (a *app) cmdDashboard(ctx context.Context) error {
	rsp, err := a.client.Dashboard(ctx)
	if err != nil {
		return err
	}
	return printJSON(rsp)
}

func (a *app) cmdFilters(ctx context.Context) error {
	rsp, err := a.client.FilterOptions(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("平台: %s\n", strings.Join(rsp.Platforms, ", "))
	fmt.Printf("内容类型: %s\n", strings.Join(rsp.ContentTypes, ", "))
	return nil
}

func configDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, "socialpulse")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

// credentialKey 派生凭据文件的加密密钥：本机标识做口令、
// 随机盐落盘。凭据文件单独拷到其他机器无法解密。
func credentialKey(dir string) ([]byte, error) {
	salt, err := loadOrCreateSalt(filepath.Join(dir, "credentials.salt"))
	if err != nil {
		return nil, err
	}
	return crypto.DeriveKey(machineSecret(), salt, crypto.DefaultKeyParams())
}

// loadOrCreateSalt 读取或生成派生盐。
func loadOrCreateSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(path)
	if err == nil && len(salt) == saltSize {
		return salt, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	salt, err = crypto.SecureRandomBytes(saltSize)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, err
	}
	return salt, nil
}

const saltSize = 16

// machineSecret 汇集本机标识作为派生口令。
func machineSecret() []byte {
	var parts []string
	if id, err := os.ReadFile("/etc/machine-id"); err == nil {
		parts = append(parts, strings.TrimSpace(string(id)))
	}
	if host, err := os.Hostname(); err == nil {
		parts = append(parts, host)
	}
	if u, err := user.Current(); err == nil {
		parts = append(parts, u.Uid, u.Username)
	}
	if len(parts) == 0 {
		parts = append(parts, "socialpulse")
	}
	return []byte(strings.Join(parts, "|"))
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
