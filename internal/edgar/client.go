package edgar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/fundcik/internal/domain"
	"github.com/John-Robertt/fundcik/internal/infra/cache"
)

const (
	DefaultSeriesURL = "https://www.sec.gov/cgi-bin/series"
	DefaultBrowseURL = "https://www.sec.gov/cgi-bin/browse-edgar"

	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 10 * time.Second

	// ProspectusSuffix 区分 485 表格搜索与基金系列搜索的缓存条目。
	ProspectusSuffix = "_485"

	maxBodyBytes = 32 << 20
)

// Cache 是 Client 需要的最小缓存能力；cache.Store 满足该接口。
type Cache interface {
	Read(params url.Values, suffix string) ([]byte, bool, error)
	Write(params url.Values, suffix string, body []byte) (bool, error)
}

var _ Cache = cache.Store{}

// Client 对 EDGAR 的两个检索入口发 GET，并负责缓存与 429 重试。
//
// 约束：
// - 缓存 key 只由参数决定：同一参数第二次请求永远不走网络
// - 只缓存 200 的响应；429 固定间隔重试，其它状态码直接返回 *HTTPStatusError
// - 网络策略（UA/限速/连接级重试）由 HTTP client 的 Transport 负责
type Client struct {
	SeriesURL string
	BrowseURL string

	HTTP  *http.Client
	Cache Cache // 可为 nil（不缓存）

	// UserAgent 非空时显式写入请求头；为空则交给 Transport 的默认 UA。
	UserAgent string

	// RetryAttempts 是 429 时的总尝试次数（含首次）。
	RetryAttempts int
	RetryDelay    time.Duration

	Logger *zap.Logger

	// sleep 可在测试中替换，避免真实等待。
	sleep func(ctx context.Context, d time.Duration) error
}

// Search 执行一次 (endpoint, params) 查询并返回原始 HTML。
func (c *Client) Search(ctx context.Context, endpoint string, params url.Values, suffix string) ([]byte, error) {
	if c.HTTP == nil {
		return nil, errors.New("http client 不能为空")
	}
	log := c.logger()

	if c.Cache != nil {
		b, ok, err := c.Cache.Read(params, suffix)
		switch {
		case err != nil:
			log.Warn("读取缓存失败，改走网络", zap.Error(err))
		case ok:
			log.Debug("cache hit", zap.String("params", params.Encode()), zap.String("suffix", suffix))
			return b, nil
		}
	}

	attempts := c.RetryAttempts
	if attempts < 1 {
		attempts = DefaultRetryAttempts
	}
	delay := c.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	u := endpoint + "?" + params.Encode()
	var body []byte
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		body, err = c.fetch(ctx, u)
		if err == nil || !IsRateLimited(err) {
			break
		}
		if attempt == attempts {
			err = &RateLimitedError{URL: u, Attempts: attempts}
			break
		}
		log.Warn("EDGAR 限流，等待后重试",
			zap.String("url", u), zap.Int("attempt", attempt), zap.Duration("delay", delay))
		if serr := c.doSleep(ctx, delay); serr != nil {
			return nil, serr
		}
	}
	if err != nil {
		return nil, err
	}

	if c.Cache != nil {
		if _, werr := c.Cache.Write(params, suffix, body); werr != nil && !errors.Is(werr, cache.ErrReadOnly) {
			log.Warn("写入缓存失败", zap.String("url", u), zap.Error(werr))
		}
	}
	return body, nil
}

// SearchTicker 按 ticker 检索基金系列表。
func (c *Client) SearchTicker(ctx context.Context, t domain.Ticker) ([]domain.SearchRecord, error) {
	if t == "" {
		return nil, errors.New("ticker 不能为空")
	}
	b, err := c.Search(ctx, c.seriesURL(), url.Values{"ticker": {string(t)}}, "")
	if err != nil {
		return nil, err
	}
	return ParseSeries(b), nil
}

// SearchCompany 按公司名（候选搜索词）检索基金系列表。
func (c *Client) SearchCompany(ctx context.Context, company string) ([]domain.SearchRecord, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return nil, errors.New("company 不能为空")
	}
	b, err := c.Search(ctx, c.seriesURL(), url.Values{"company": {company}}, "")
	if err != nil {
		return nil, err
	}
	return ParseSeries(b), nil
}

// SearchProspectus 按公司名前缀检索 485 表格申报人（固定分页参数）。
func (c *Client) SearchProspectus(ctx context.Context, company string) ([]domain.SearchRecord, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return nil, errors.New("company 不能为空")
	}
	params := url.Values{
		"type":        {"485"},
		"action":      {"getcompany"},
		"company":     {company},
		"start":       {"0"},
		"count":       {"500"},
		"hidefilings": {"0"},
	}
	b, err := c.Search(ctx, c.browseURL(), params, ProspectusSuffix)
	if err != nil {
		return nil, err
	}
	return ParseProspectus(b), nil
}

func (c *Client) fetch(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if ua := strings.TrimSpace(c.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &RateLimitedError{URL: u, Attempts: 1}
	default:
		return nil, &HTTPStatusError{URL: u, StatusCode: resp.StatusCode}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("读取响应失败：%w", err)
	}
	return b, nil
}

func (c *Client) doSleep(ctx context.Context, d time.Duration) error {
	if c.sleep != nil {
		return c.sleep(ctx, d)
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

func (c *Client) seriesURL() string {
	if s := strings.TrimSpace(c.SeriesURL); s != "" {
		return s
	}
	return DefaultSeriesURL
}

func (c *Client) browseURL() string {
	if s := strings.TrimSpace(c.BrowseURL); s != "" {
		return s
	}
	return DefaultBrowseURL
}

func (c *Client) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
