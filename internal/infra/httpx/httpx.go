package httpx

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultRetryMax = 2
	// SEC fair-access 上限是 10 req/s；默认只用一半。
	defaultRatePerSecond = 5
)

// Transport 把“固定 UA + 限速 + keep-alive 策略 + 有界重试”固化为统一策略。
//
// 设计目标：edgar 包只负责“拼参数 + 解析 HTML + 处理 429”，不关心网络策略细节。
// 注意：这里的重试只针对网络层错误（连接失败/超时）；HTTP 状态码由上层解释。
type Transport struct {
	Base *http.Transport

	// UserAgent 对每个未显式设置 UA 的请求生效（EDGAR 要求标识调用方）。
	UserAgent string

	// Limiter 非空时，每次尝试（含重试）都要先拿到令牌。
	Limiter *rate.Limiter

	// RetryMax 表示最大重试次数（不含首次尝试）。例如 2 表示最多 3 次尝试。
	RetryMax int

	// DisableKeepAlives 决定是否对 Request 设置 Close=true（额外保险）。
	DisableKeepAlives bool
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	// 只对“可重放”的请求做重试：GET/HEAD 且无 body。
	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil
	max := t.RetryMax
	if max < 0 {
		max = 0
	}
	if !canRetry {
		max = 0
	}

	var lastErr error
	for attempt := 0; attempt <= max; attempt++ {
		if t.Limiter != nil {
			if err := t.Limiter.Wait(req.Context()); err != nil {
				if lastErr != nil {
					return nil, lastErr
				}
				return nil, err
			}
		}

		r := req.Clone(req.Context())
		if r.Header.Get("User-Agent") == "" && t.UserAgent != "" {
			r.Header.Set("User-Agent", t.UserAgent)
		}
		if t.DisableKeepAlives {
			r.Close = true
		}

		resp, err := t.Base.RoundTrip(r)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if req.Context().Err() != nil {
			// ctx 已取消：不再重试，直接返回最后错误（更可解释）。
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// Options 是构造 HTTP client 的最小参数集（由 config.EffectiveConfig 填充）。
type Options struct {
	UserAgent string
	ProxyURL  string

	// RatePerSecond <=0 时使用默认值；Burst <=0 时为 1。
	RatePerSecond float64
	Burst         int

	Timeout time.Duration
}

// NewClient 构造用于 EDGAR 页面抓取的 HTTP client。
//
// 规则：
// - UserAgent 必填（EDGAR 会拒绝匿名请求）
// - proxyURL 非空：走代理，且禁用 keep-alive（每请求新连接）
// - 全局限速 + 有界重试 + 总超时
func NewClient(o Options) (*http.Client, error) {
	ua := strings.TrimSpace(o.UserAgent)
	if ua == "" {
		return nil, errors.New("user_agent 不能为空")
	}

	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
	}

	disableKeepAlives := false
	if p := strings.TrimSpace(o.ProxyURL); p != "" {
		u, err := url.Parse(p)
		if err != nil {
			return nil, err
		}
		base.Proxy = http.ProxyURL(u)
		base.DisableKeepAlives = true
		disableKeepAlives = true
	}

	rps := o.RatePerSecond
	if rps <= 0 {
		rps = defaultRatePerSecond
	}
	burst := o.Burst
	if burst <= 0 {
		burst = 1
	}

	timeout := o.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	tr := &Transport{
		Base:              base,
		UserAgent:         ua,
		Limiter:           rate.NewLimiter(rate.Limit(rps), burst),
		RetryMax:          defaultRetryMax,
		DisableKeepAlives: disableKeepAlives,
	}
	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}
