package edgar

import (
	"errors"
	"fmt"
	"strings"
)

// HTTPStatusError 表示 EDGAR 返回了 200/429 以外的状态码。
// 对单次查询是致命的（不重试）；上层应把它当作“该候选没有结果”继续下一个。
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	if strings.TrimSpace(e.URL) == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d url=%s", e.StatusCode, e.URL)
}

// RateLimitedError 表示 EDGAR 返回 429。单次 429 可重试；Attempts 记录最终放弃前的尝试次数。
type RateLimitedError struct {
	URL      string
	Attempts int
}

func (e *RateLimitedError) Error() string {
	if e == nil {
		return "rate limited"
	}
	if e.Attempts > 1 {
		return fmt.Sprintf("HTTP 429：重试 %d 次后仍被限流", e.Attempts)
	}
	return "HTTP 429"
}

// IsRateLimited 判断 err 是否为 429 限流。
func IsRateLimited(err error) bool {
	var e *RateLimitedError
	return errors.As(err, &e)
}

// StatusCode 从 err 中提取 HTTP 状态码；不是状态码错误时返回 0。
func StatusCode(err error) int {
	var se *HTTPStatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	if IsRateLimited(err) {
		return 429
	}
	return 0
}
