package main

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/fundcik/internal/domain"
	"github.com/John-Robertt/fundcik/internal/resolve"
)

type resolveFlags struct {
	commandFlags
	ticker string
}

func newResolveCmd(g *globalFlags) *cobra.Command {
	var rf resolveFlags

	cmd := &cobra.Command{
		Use:   "resolve <fund name>",
		Short: "Resolve a single fund name and print the resolution as JSON",
		Long: `解析单个基金名称（可附带 ticker），在 stdout 输出一个 Resolution JSON，
包含每次检索的 attempts 轨迹，便于排查某个名称为什么没有命中。`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, g, rf, strings.Join(args, " "))
		},
	}

	f := cmd.Flags()
	f.StringVarP(&rf.ticker, "ticker", "t", "", "基金 ticker（可选，合法时优先精确检索）")
	f.BoolVar(&rf.oracle, "oracle", false, "多个 CIK 命中时询问 LLM oracle")
	f.BoolVar(&rf.prospectus, "prospectus", false, "前两阶段无结果时启用 485 prospectus 检索")
	f.DurationVar(&rf.timeout, "timeout", 0, "解析超时（例如 2m）")

	return cmd
}

func runResolve(cmd *cobra.Command, g *globalFlags, rf resolveFlags, name string) error {
	eff, err := loadConfig(cmd, g, rf.commandFlags)
	if err != nil {
		return err
	}
	log, err := newLogger(eff)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), eff.ResolveTimeout)
	defer cancel()

	r, err := buildResolver(ctx, eff, log)
	if err != nil {
		return err
	}

	q := domain.NewFundQuery(name, rf.ticker)
	res, err := r.Resolve(ctx, q, resolve.Options{Oracle: eff.Oracle, Prospectus: eff.Prospectus})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
