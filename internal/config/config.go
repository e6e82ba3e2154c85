package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	// ErrCodeNotFound 表示 --config 指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件/环境变量无法读取、解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

// FileName 是 cwd 下自动发现的配置文件名（可选）。
const FileName = "fundcik.json"

const (
	DefaultSeriesURL      = "https://www.sec.gov/cgi-bin/series"
	DefaultBrowseURL      = "https://www.sec.gov/cgi-bin/browse-edgar"
	DefaultCacheDir       = "cache"
	DefaultRatePerSecond  = 5.0
	DefaultRetryAttempts  = 3
	DefaultRetryDelay     = 10 * time.Second
	DefaultHTTPTimeout    = 30 * time.Second
	DefaultResolveTimeout = 5 * time.Minute
	DefaultOracleModel    = "gemini-2.0-flash"
	DefaultGCPRegion      = "us-central1"
	DefaultLogLevel       = "info"
	DefaultLogEncoding    = "console"
)

// CLIArgs 是命令行暴露的覆盖项，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --oracle=false 必须能覆盖 config.oracle=true。
type CLIArgs struct {
	ConfigPath string

	CacheDir  string
	RulesPath string
	UserAgent string
	LogLevel  string

	Oracle    bool
	OracleSet bool

	Prospectus    bool
	ProspectusSet bool

	ResolveTimeout    time.Duration
	ResolveTimeoutSet bool
}

// FileConfig 对应 fundcik.json 的解析结构。
// API key 这类凭据只从环境变量读取，不进配置文件。
type FileConfig struct {
	UserAgent      string        `json:"user_agent"`
	SeriesURL      string        `json:"series_url"`
	BrowseURL      string        `json:"browse_url"`
	CacheDir       string        `json:"cache_dir"`
	CacheReadOnly  bool          `json:"cache_read_only"`
	Rules          string        `json:"rules"`
	Oracle         *bool         `json:"oracle"`
	Prospectus     *bool         `json:"prospectus"`
	RatePerSecond  float64       `json:"rate_per_second"`
	RetryAttempts  int           `json:"retry_attempts"`
	RetryDelay     string        `json:"retry_delay"`
	HTTPTimeout    string        `json:"http_timeout"`
	ResolveTimeout string        `json:"resolve_timeout"`
	Proxy          *ProxyConfig  `json:"proxy"`
	Log            *LogConfig    `json:"log"`
	Gemini         *GeminiConfig `json:"gemini"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

type LogConfig struct {
	Level    string `json:"level"`
	Encoding string `json:"encoding"`
}

type GeminiConfig struct {
	Model    string `json:"model"`
	Project  string `json:"project"`
	Location string `json:"location"`
}

// EnvConfig 是从环境变量读取的部分。
type EnvConfig struct {
	UserAgent    string `env:"FUNDCIK_USER_AGENT"`
	CacheDir     string `env:"FUNDCIK_CACHE_DIR"`
	LogLevel     string `env:"FUNDCIK_LOG_LEVEL"`
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GCPProject   string `env:"GCP_PROJECT_ID"`
	GCPRegion    string `env:"GCP_REGION"`
	OracleModel  string `env:"FUNDCIK_ORACLE_MODEL"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	ConfigPath string // 实际读取的配置文件；没有则为空

	UserAgent string
	SeriesURL string
	BrowseURL string

	CacheDir      string
	CacheReadOnly bool
	RulesPath     string

	Oracle     bool
	Prospectus bool

	RatePerSecond  float64
	RetryAttempts  int
	RetryDelay     time.Duration
	HTTPTimeout    time.Duration
	ResolveTimeout time.Duration
	ProxyURL       string

	LogLevel    string
	LogEncoding string

	Gemini Gemini
}

// Gemini 是 oracle 后端的最终配置。APIKey 与 Project 至少一个非空才能启用 oracle。
type Gemini struct {
	APIKey   string
	Project  string
	Location string
	Model    string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Path == "" {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 读取配置文件与环境变量，并与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在
// 2) 否则尝试 <cwd>/fundcik.json（可选）
//
// 覆盖优先级（固定）：默认值 < 配置文件 < 环境变量 < CLI。
// environ 为 nil 时读取进程环境变量（测试可注入）。
func LoadEffective(cwd string, cli CLIArgs, environ map[string]string) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	required := false
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		required = true
	}

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		if required {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
		cfgPath = ""
	}

	var ec EnvConfig
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&ec, opts); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Err: fmt.Errorf("环境变量无效：%w", err)}
	}

	eff, err := merge(cwdAbs, cli, fc, ec)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	eff.ConfigPath = cfgPath
	return eff, nil
}

func merge(cwd string, cli CLIArgs, fc FileConfig, ec EnvConfig) (EffectiveConfig, error) {
	eff := EffectiveConfig{
		UserAgent:     pick(cli.UserAgent, ec.UserAgent, fc.UserAgent),
		SeriesURL:     pick(fc.SeriesURL, DefaultSeriesURL),
		BrowseURL:     pick(fc.BrowseURL, DefaultBrowseURL),
		CacheReadOnly: fc.CacheReadOnly,
		RatePerSecond: fc.RatePerSecond,
		RetryAttempts: fc.RetryAttempts,
		LogEncoding:   DefaultLogEncoding,
	}

	if eff.UserAgent == "" {
		return EffectiveConfig{}, errors.New("user_agent 不能为空（SEC 要求带联系方式的 User-Agent，可用 FUNDCIK_USER_AGENT 设置）")
	}
	for name, u := range map[string]string{"series_url": eff.SeriesURL, "browse_url": eff.BrowseURL} {
		if err := validateHTTPURL(u); err != nil {
			return EffectiveConfig{}, fmt.Errorf("%s %w", name, err)
		}
	}

	eff.CacheDir = absCleanFrom(cwd, pick(cli.CacheDir, ec.CacheDir, fc.CacheDir, DefaultCacheDir))
	if p := pick(cli.RulesPath, fc.Rules); p != "" {
		eff.RulesPath = absCleanFrom(cwd, p)
		if st, err := os.Stat(eff.RulesPath); err != nil || st.IsDir() {
			return EffectiveConfig{}, fmt.Errorf("rules 文件不可读：%q", eff.RulesPath)
		}
	}

	// oracle/prospectus：CLI > config > 默认 false
	switch {
	case cli.OracleSet:
		eff.Oracle = cli.Oracle
	case fc.Oracle != nil:
		eff.Oracle = *fc.Oracle
	}
	switch {
	case cli.ProspectusSet:
		eff.Prospectus = cli.Prospectus
	case fc.Prospectus != nil:
		eff.Prospectus = *fc.Prospectus
	}

	if eff.RatePerSecond == 0 {
		eff.RatePerSecond = DefaultRatePerSecond
	}
	if eff.RatePerSecond < 0 {
		return EffectiveConfig{}, fmt.Errorf("rate_per_second 必须 > 0，实际是 %v", eff.RatePerSecond)
	}
	if eff.RetryAttempts == 0 {
		eff.RetryAttempts = DefaultRetryAttempts
	}
	if eff.RetryAttempts < 1 {
		return EffectiveConfig{}, fmt.Errorf("retry_attempts 必须 >= 1，实际是 %d", eff.RetryAttempts)
	}

	var err error
	if eff.RetryDelay, err = parseDuration("retry_delay", fc.RetryDelay, DefaultRetryDelay); err != nil {
		return EffectiveConfig{}, err
	}
	if eff.HTTPTimeout, err = parseDuration("http_timeout", fc.HTTPTimeout, DefaultHTTPTimeout); err != nil {
		return EffectiveConfig{}, err
	}
	if eff.ResolveTimeout, err = parseDuration("resolve_timeout", fc.ResolveTimeout, DefaultResolveTimeout); err != nil {
		return EffectiveConfig{}, err
	}
	if cli.ResolveTimeoutSet {
		if cli.ResolveTimeout <= 0 {
			return EffectiveConfig{}, fmt.Errorf("--timeout 必须 > 0")
		}
		eff.ResolveTimeout = cli.ResolveTimeout
	}

	if fc.Proxy != nil {
		eff.ProxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if eff.ProxyURL != "" {
		if _, err := url.Parse(eff.ProxyURL); err != nil {
			return EffectiveConfig{}, fmt.Errorf("proxy.url 无效：%w", err)
		}
	}

	var lc LogConfig
	if fc.Log != nil {
		lc = *fc.Log
	}
	eff.LogLevel = strings.ToLower(pick(cli.LogLevel, ec.LogLevel, lc.Level, DefaultLogLevel))
	eff.LogEncoding = strings.ToLower(pick(lc.Encoding, DefaultLogEncoding))
	if eff.LogEncoding != "console" && eff.LogEncoding != "json" {
		return EffectiveConfig{}, fmt.Errorf("log.encoding 只能是 console 或 json，实际是 %q", eff.LogEncoding)
	}

	var gc GeminiConfig
	if fc.Gemini != nil {
		gc = *fc.Gemini
	}
	eff.Gemini = Gemini{
		APIKey:   strings.TrimSpace(ec.GeminiAPIKey),
		Project:  pick(ec.GCPProject, gc.Project),
		Location: pick(ec.GCPRegion, gc.Location, DefaultGCPRegion),
		Model:    pick(ec.OracleModel, gc.Model, DefaultOracleModel),
	}
	if eff.Oracle && eff.Gemini.APIKey == "" && eff.Gemini.Project == "" {
		return EffectiveConfig{}, errors.New("启用 oracle 需要 GEMINI_API_KEY 或 GCP_PROJECT_ID")
	}

	return eff, nil
}

// pick 返回第一个非空（去掉首尾空白后）的值。
func pick(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func parseDuration(field, s string, def time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s 无效：%w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s 必须 > 0，实际是 %q", field, s)
	}
	return d, nil
}

func validateHTTPURL(s string) error {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("无效：%q", s)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("必须是 http/https：%q", s)
	}
	return nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
