package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var baseEnv = map[string]string{"FUNDCIK_USER_AGENT": "Jane Doe (jane@example.com)"}

func TestLoadEffective_DefaultsWithoutConfigFile(t *testing.T) {
	cwd := t.TempDir()

	eff, err := LoadEffective(cwd, CLIArgs{}, baseEnv)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ConfigPath != "" {
		t.Fatalf("没有配置文件时 ConfigPath 应为空，实际=%q", eff.ConfigPath)
	}
	if eff.UserAgent != "Jane Doe (jane@example.com)" {
		t.Fatalf("user agent 不符合预期：%q", eff.UserAgent)
	}
	if eff.SeriesURL != DefaultSeriesURL || eff.BrowseURL != DefaultBrowseURL {
		t.Fatalf("默认 URL 不符合预期：%q %q", eff.SeriesURL, eff.BrowseURL)
	}
	if eff.CacheDir != filepath.Join(cwd, DefaultCacheDir) {
		t.Fatalf("cache_dir 期望 %q，实际=%q", filepath.Join(cwd, DefaultCacheDir), eff.CacheDir)
	}
	if eff.Oracle || eff.Prospectus {
		t.Fatalf("oracle/prospectus 默认应关闭")
	}
	if eff.RetryAttempts != DefaultRetryAttempts || eff.RetryDelay != DefaultRetryDelay {
		t.Fatalf("重试默认值不符合预期：%d %v", eff.RetryAttempts, eff.RetryDelay)
	}
	if eff.ResolveTimeout != DefaultResolveTimeout || eff.RatePerSecond != DefaultRatePerSecond {
		t.Fatalf("默认值不符合预期：%+v", eff)
	}
	if eff.Gemini.Model != DefaultOracleModel || eff.Gemini.Location != DefaultGCPRegion {
		t.Fatalf("gemini 默认值不符合预期：%+v", eff.Gemini)
	}
}

func TestLoadEffective_UserAgentRequired(t *testing.T) {
	_, err := LoadEffective(t.TempDir(), CLIArgs{}, map[string]string{})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
	}
}

func TestLoadEffective_ExplicitConfigNotFound(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{ConfigPath: "missing.json"}, baseEnv)
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoadEffective_InvalidJSON(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{`))

	_, err := LoadEffective(cwd, CLIArgs{}, baseEnv)
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
	}
}

func TestLoadEffective_MergeOrder(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{
		"user_agent": "from file",
		"cache_dir": "file-cache",
		"oracle": true,
		"prospectus": true,
		"log": {"level": "warn", "encoding": "json"},
		"gemini": {"project": "file-project", "model": "file-model"}
	}`))

	// 配置文件生效。
	eff, err := LoadEffective(cwd, CLIArgs{}, map[string]string{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.UserAgent != "from file" || eff.CacheDir != filepath.Join(cwd, "file-cache") {
		t.Fatalf("配置文件值未生效：%+v", eff)
	}
	if !eff.Oracle || !eff.Prospectus || eff.LogLevel != "warn" || eff.LogEncoding != "json" {
		t.Fatalf("配置文件值未生效：%+v", eff)
	}
	if eff.Gemini.Project != "file-project" || eff.Gemini.Model != "file-model" {
		t.Fatalf("gemini 配置未生效：%+v", eff.Gemini)
	}

	// 环境变量覆盖配置文件。
	eff, err = LoadEffective(cwd, CLIArgs{}, map[string]string{
		"FUNDCIK_USER_AGENT":   "from env",
		"FUNDCIK_CACHE_DIR":    "/tmp/env-cache",
		"FUNDCIK_LOG_LEVEL":    "debug",
		"GCP_PROJECT_ID":       "env-project",
		"FUNDCIK_ORACLE_MODEL": "env-model",
		"GEMINI_API_KEY":       "k",
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.UserAgent != "from env" || eff.CacheDir != "/tmp/env-cache" || eff.LogLevel != "debug" {
		t.Fatalf("环境变量未覆盖配置文件：%+v", eff)
	}
	if eff.Gemini.Project != "env-project" || eff.Gemini.Model != "env-model" || eff.Gemini.APIKey != "k" {
		t.Fatalf("gemini 环境变量未生效：%+v", eff.Gemini)
	}

	// CLI 覆盖一切：--oracle=false 必须能关掉配置文件里的 oracle=true。
	eff, err = LoadEffective(cwd, CLIArgs{
		UserAgent:         "from cli",
		CacheDir:          "cli-cache",
		Oracle:            false,
		OracleSet:         true,
		Prospectus:        false,
		ProspectusSet:     true,
		ResolveTimeout:    time.Minute,
		ResolveTimeoutSet: true,
	}, map[string]string{"FUNDCIK_USER_AGENT": "from env"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.UserAgent != "from cli" || eff.CacheDir != filepath.Join(cwd, "cli-cache") {
		t.Fatalf("CLI 未覆盖：%+v", eff)
	}
	if eff.Oracle || eff.Prospectus || eff.ResolveTimeout != time.Minute {
		t.Fatalf("CLI 未覆盖：%+v", eff)
	}
}

func TestLoadEffective_OracleRequiresCredentials(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{Oracle: true, OracleSet: true}, baseEnv)
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
	}

	env := map[string]string{"FUNDCIK_USER_AGENT": "ua", "GEMINI_API_KEY": "secret"}
	eff, err := LoadEffective(cwd, CLIArgs{Oracle: true, OracleSet: true}, env)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !eff.Oracle || eff.Gemini.APIKey != "secret" {
		t.Fatalf("oracle 配置不符合预期：%+v", eff)
	}
}

func TestLoadEffective_RulesMustBeReadable(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{RulesPath: "nope.yaml"}, baseEnv)
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
	}

	writeFile(t, filepath.Join(cwd, "rules.yaml"), []byte("rewrites: []\n"))
	eff, err := LoadEffective(cwd, CLIArgs{RulesPath: "rules.yaml"}, baseEnv)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.RulesPath != filepath.Join(cwd, "rules.yaml") {
		t.Fatalf("rules 路径不符合预期：%q", eff.RulesPath)
	}
}

func TestLoadEffective_InvalidFields(t *testing.T) {
	cases := map[string]string{
		"proxy":      `{"proxy":{"url":"http://[::1"}}`,
		"series_url": `{"series_url":"ftp://example.com/x"}`,
		"retry":      `{"retry_attempts":-1}`,
		"rate":       `{"rate_per_second":-2}`,
		"duration":   `{"retry_delay":"soon"}`,
		"encoding":   `{"log":{"encoding":"xml"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			cwd := t.TempDir()
			writeFile(t, filepath.Join(cwd, FileName), []byte(body))

			_, err := LoadEffective(cwd, CLIArgs{}, baseEnv)
			if Code(err) != ErrCodeInvalid {
				t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
			}
		})
	}
}

func TestLoadEffective_ExplicitConfigPath(t *testing.T) {
	cwd := t.TempDir()
	dir := filepath.Join(cwd, "conf")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	writeFile(t, filepath.Join(dir, "custom.json"), []byte(`{"retry_delay":"250ms","http_timeout":"5s"}`))

	eff, err := LoadEffective(cwd, CLIArgs{ConfigPath: "conf/custom.json"}, baseEnv)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ConfigPath != filepath.Join(dir, "custom.json") {
		t.Fatalf("ConfigPath 不符合预期：%q", eff.ConfigPath)
	}
	if eff.RetryDelay != 250*time.Millisecond || eff.HTTPTimeout != 5*time.Second {
		t.Fatalf("duration 字段不符合预期：%v %v", eff.RetryDelay, eff.HTTPTimeout)
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败 %q：%v", path, err)
	}
}
