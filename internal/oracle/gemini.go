package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	DefaultModel = "gemini-2.0-flash"

	DefaultAttempts  = 4
	DefaultBaseDelay = 5 * time.Second
	DefaultMaxDelay  = 60 * time.Second

	maxOutputTokens = 1024
)

// GeminiConfig 描述 Gemini 后端的连接方式。
//
// APIKey 非空时走 Gemini API；否则要求 Project（Vertex AI，凭据来自 ADC）。
type GeminiConfig struct {
	APIKey   string
	Project  string
	Location string
	Model    string

	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration

	Logger *zap.Logger
}

// generateFunc 是对模型的单次调用：prompt -> 纯文本回复。
type generateFunc func(ctx context.Context, prompt string) (string, error)

// Gemini 是基于 google.golang.org/genai 的 Oracle 实现。
//
// 约束：
// - temperature=0，输出上限 1024 tokens
// - 仅在“资源耗尽/过载”时指数退避重试；其它 API 错误直接返回
// - 回复无法解析时返回空 Pick（无匹配），不报错
type Gemini struct {
	model     string
	generate  generateFunc
	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
	log       *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

var _ Oracle = (*Gemini)(nil)

// NewGemini 创建 genai client 并返回 Oracle。
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	cc := &genai.ClientConfig{}
	switch {
	case strings.TrimSpace(cfg.APIKey) != "":
		cc.APIKey = strings.TrimSpace(cfg.APIKey)
		cc.Backend = genai.BackendGeminiAPI
	case strings.TrimSpace(cfg.Project) != "":
		cc.Backend = genai.BackendVertexAI
		cc.Project = strings.TrimSpace(cfg.Project)
		cc.Location = strings.TrimSpace(cfg.Location)
		if cc.Location == "" {
			cc.Location = "us-central1"
		}
	default:
		return nil, errors.New("oracle 需要 API key 或 GCP project")
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("创建 genai client 失败：%w", err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	gc := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0),
		TopP:            genai.Ptr[float32](0.95),
		MaxOutputTokens: maxOutputTokens,
	}
	gen := func(ctx context.Context, prompt string) (string, error) {
		resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), gc)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}
	return newGemini(model, gen, cfg), nil
}

func newGemini(model string, gen generateFunc, cfg GeminiConfig) *Gemini {
	g := &Gemini{
		model:     model,
		generate:  gen,
		attempts:  cfg.Attempts,
		baseDelay: cfg.BaseDelay,
		maxDelay:  cfg.MaxDelay,
		log:       cfg.Logger,
	}
	if g.attempts < 1 {
		g.attempts = DefaultAttempts
	}
	if g.baseDelay <= 0 {
		g.baseDelay = DefaultBaseDelay
	}
	if g.maxDelay <= 0 {
		g.maxDelay = DefaultMaxDelay
	}
	if g.log == nil {
		g.log = zap.NewNop()
	}
	return g
}

// Pick 实现 Oracle。
func (g *Gemini) Pick(ctx context.Context, query string, cands []Candidate) (Pick, error) {
	if len(cands) == 0 {
		return Pick{}, nil
	}
	prompt := BuildPrompt(query, cands)

	var reply string
	var err error
	delay := g.baseDelay
	for attempt := 1; attempt <= g.attempts; attempt++ {
		reply, err = g.generate(ctx, prompt)
		if err == nil || !IsOverloaded(err) || attempt == g.attempts {
			break
		}
		g.log.Warn("oracle 过载，退避后重试",
			zap.String("model", g.model), zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
		if serr := g.doSleep(ctx, delay); serr != nil {
			return Pick{}, serr
		}
		delay = min(delay*2, g.maxDelay)
	}
	if err != nil {
		if IsOverloaded(err) {
			return Pick{}, &OverloadError{Attempts: g.attempts, Err: err}
		}
		return Pick{}, fmt.Errorf("oracle 调用失败：%w", err)
	}

	p, perr := ParseReply(reply)
	if perr != nil {
		g.log.Warn("oracle 回复无法解析，按无匹配处理", zap.String("query", query), zap.Error(perr))
		return Pick{}, nil
	}
	return p, nil
}

// OverloadError 表示过载重试耗尽。
type OverloadError struct {
	Attempts int
	Err      error
}

func (e *OverloadError) Error() string {
	return fmt.Sprintf("oracle 过载：重试 %d 次后放弃：%v", e.Attempts, e.Err)
}

func (e *OverloadError) Unwrap() error { return e.Err }

// IsOverloaded 判断 err 是否为可重试的“资源耗尽/过载”。
func IsOverloaded(err error) bool {
	var v genai.APIError
	if errors.As(err, &v) {
		return overloaded(v)
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return overloaded(*p)
	}
	return false
}

func overloaded(e genai.APIError) bool {
	return e.Code == http.StatusTooManyRequests ||
		e.Code == http.StatusServiceUnavailable ||
		strings.EqualFold(e.Status, "RESOURCE_EXHAUSTED") ||
		strings.EqualFold(e.Status, "UNAVAILABLE")
}

func (g *Gemini) doSleep(ctx context.Context, d time.Duration) error {
	if g.sleep != nil {
		return g.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
