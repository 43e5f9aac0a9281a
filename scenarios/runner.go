package scenarios

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/careflow/api"
)

// Result 是单个场景的执行结果。
type Result struct {
	Scenario Scenario
	Response *api.QueryResponse
	Err      error
	Elapsed  time.Duration
}

// Passed reports whether the scenario ran and its checks held.
func (r Result) Passed() bool {
	return r.Err == nil
}

// Runner 按顺序向一个在线路由代理执行场景。
type Runner struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// Option 配置 Runner。
type Option func(*Runner)

// WithHTTPClient 覆盖默认的 HTTP 客户端。
func WithHTTPClient(client *http.Client) Option {
	return func(r *Runner) { r.client = client }
}

// WithLogger 设置日志实例。
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// NewRunner 创建场景执行器, baseURL 指向路由代理根地址。
func NewRunner(baseURL string, opts ...Option) *Runner {
	r := &Runner{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// envelope 对应 /query 的统一响应包装。
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Run 执行单个场景并校验响应。
func (r *Runner) Run(ctx context.Context, s Scenario) Result {
	start := time.Now()
	resp, err := r.query(ctx, s.Request)
	result := Result{
		Scenario: s,
		Response: resp,
		Err:      err,
		Elapsed:  time.Since(start),
	}
	if result.Err == nil && s.Check != nil {
		result.Err = s.Check(resp)
	}
	return result
}

// RunAll 按顺序执行全部场景, 单个失败不会中断后续场景。
func (r *Runner) RunAll(ctx context.Context, scenarios []Scenario) []Result {
	results := make([]Result, 0, len(scenarios))
	for _, s := range scenarios {
		result := r.Run(ctx, s)
		if result.Passed() {
			r.logger.Info("scenario passed",
				zap.String("scenario", s.Name),
				zap.Duration("elapsed", result.Elapsed),
			)
		} else {
			r.logger.Warn("scenario failed",
				zap.String("scenario", s.Name),
				zap.Error(result.Err),
			)
		}
		results = append(results, result)
	}
	return results
}

// query 发送 /query 请求并解包聚合响应。
func (r *Runner) query(ctx context.Context, reqBody api.QueryRequest) (*api.QueryResponse, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/query", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post /query: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope (status %d): %w", httpResp.StatusCode, err)
	}
	if !env.Success {
		if env.Error != nil {
			return nil, fmt.Errorf("query failed: %s (%s)", env.Error.Message, env.Error.Code)
		}
		return nil, fmt.Errorf("query failed with status %d", httpResp.StatusCode)
	}

	var queryResp api.QueryResponse
	if err := json.Unmarshal(env.Data, &queryResp); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	return &queryResp, nil
}
