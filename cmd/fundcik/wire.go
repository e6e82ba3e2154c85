package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/John-Robertt/fundcik/internal/config"
	"github.com/John-Robertt/fundcik/internal/edgar"
	"github.com/John-Robertt/fundcik/internal/fundname"
	"github.com/John-Robertt/fundcik/internal/infra/cache"
	"github.com/John-Robertt/fundcik/internal/infra/httpx"
	"github.com/John-Robertt/fundcik/internal/logx"
	"github.com/John-Robertt/fundcik/internal/oracle"
	"github.com/John-Robertt/fundcik/internal/resolve"
)

// commandFlags 是子命令各自的覆盖项；Set 字段由 cmd.Flags().Changed 填充。
type commandFlags struct {
	oracle     bool
	prospectus bool
	timeout    time.Duration
}

func loadConfig(cmd *cobra.Command, g *globalFlags, cf commandFlags) (config.EffectiveConfig, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return config.EffectiveConfig{}, err
	}
	cli := config.CLIArgs{
		ConfigPath:    g.configPath,
		CacheDir:      g.cacheDir,
		RulesPath:     g.rulesPath,
		UserAgent:     g.userAgent,
		LogLevel:      g.logLevel,
		Oracle:        cf.oracle,
		OracleSet:     cmd.Flags().Changed("oracle"),
		Prospectus:    cf.prospectus,
		ProspectusSet: cmd.Flags().Changed("prospectus"),
	}
	if cmd.Flags().Changed("timeout") {
		cli.ResolveTimeout = cf.timeout
		cli.ResolveTimeoutSet = true
	}
	return config.LoadEffective(cwd, cli, nil)
}

func newLogger(eff config.EffectiveConfig) (*zap.Logger, error) {
	return logx.New(logx.Config{
		Level:    eff.LogLevel,
		Encoding: eff.LogEncoding,
		Output:   os.Stderr,
	})
}

// buildResolver 按生效配置组装：HTTP client -> 缓存 -> EDGAR client -> 规则 -> oracle -> Resolver。
func buildResolver(ctx context.Context, eff config.EffectiveConfig, log *zap.Logger) (*resolve.Resolver, error) {
	hc, err := httpx.NewClient(httpx.Options{
		UserAgent:     eff.UserAgent,
		ProxyURL:      eff.ProxyURL,
		RatePerSecond: eff.RatePerSecond,
		Timeout:       eff.HTTPTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("构造 HTTP client 失败：%w", err)
	}

	ec := &edgar.Client{
		SeriesURL:     eff.SeriesURL,
		BrowseURL:     eff.BrowseURL,
		HTTP:          hc,
		Cache:         cache.New(eff.CacheDir, eff.CacheReadOnly),
		UserAgent:     eff.UserAgent,
		RetryAttempts: eff.RetryAttempts,
		RetryDelay:    eff.RetryDelay,
		Logger:        log.Named("edgar"),
	}

	var rules *fundname.Rules
	if eff.RulesPath != "" {
		rules, err = fundname.LoadRules(eff.RulesPath)
		if err != nil {
			return nil, err
		}
	}

	// 接口变量只在真正启用时赋值，避免 typed-nil。
	var o oracle.Oracle
	if eff.Oracle {
		g, err := oracle.NewGemini(ctx, oracle.GeminiConfig{
			APIKey:   eff.Gemini.APIKey,
			Project:  eff.Gemini.Project,
			Location: eff.Gemini.Location,
			Model:    eff.Gemini.Model,
			Logger:   log.Named("oracle"),
		})
		if err != nil {
			return nil, err
		}
		o = g
	}

	return resolve.New(ec, rules, o, log.Named("resolve"))
}
