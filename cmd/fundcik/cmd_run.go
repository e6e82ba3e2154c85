package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/John-Robertt/fundcik/internal/app/batch"
	"github.com/John-Robertt/fundcik/internal/domain"
	"github.com/John-Robertt/fundcik/internal/resolve"
)

type runFlags struct {
	commandFlags
	output    string
	unmatched string
	limit     int
}

func newRunCmd(g *globalFlags) *cobra.Command {
	var rf runFlags

	cmd := &cobra.Command{
		Use:   "run <input.csv>",
		Short: "Resolve every row of a CSV file and append results to the output CSV",
		Long: `逐行解析输入 CSV（name[,ticker]，表头可选），结果逐行追加到输出 CSV。

输出文件已存在时按其中的数据行数续跑；中断（Ctrl-C）后重新执行同一命令即可继续。
stdout 只输出一个 RunReport JSON（交互终端下改为一行摘要），日志与进度走 stderr。`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, g, rf, args[0])
		},
	}

	f := cmd.Flags()
	f.StringVarP(&rf.output, "output", "o", "", "输出 CSV 路径（必填）")
	f.StringVar(&rf.unmatched, "unmatched", "", "未匹配的基金名逐行追加到该文件")
	f.IntVar(&rf.limit, "limit", 0, "本次最多处理的新行数（0 表示不限）")
	f.BoolVar(&rf.oracle, "oracle", false, "多个 CIK 命中时询问 LLM oracle")
	f.BoolVar(&rf.prospectus, "prospectus", false, "前两阶段无结果时启用 485 prospectus 检索")
	f.DurationVar(&rf.timeout, "timeout", 0, "单行解析超时（例如 2m）")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runBatch(cmd *cobra.Command, g *globalFlags, rf runFlags, input string) error {
	eff, err := loadConfig(cmd, g, rf.commandFlags)
	if err != nil {
		return err
	}
	log, err := newLogger(eff)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := buildResolver(ctx, eff, log)
	if err != nil {
		return err
	}
	if eff.ConfigPath != "" {
		log.Debug("config loaded", zap.String("path", eff.ConfigPath))
	}

	var obs batch.Observer
	if w, ok := pickProgressWriter(); ok {
		obs = newProgressUI(w)
	}

	rr, runErr := batch.Execute(ctx, r, batch.Options{
		Input:     input,
		Output:    rf.output,
		Unmatched: rf.unmatched,
		Resolve:   resolve.Options{Oracle: eff.Oracle, Prospectus: eff.Prospectus},
		Timeout:   eff.ResolveTimeout,
		Limit:     rf.limit,
		Logger:    log,
	}, obs)

	emitReport(cmd.OutOrStdout(), cmd.ErrOrStderr(), isTTYWriter(cmd.OutOrStdout()), rr)
	if runErr != nil {
		return runErr
	}
	if rr.Summary.Failed > 0 {
		return fmt.Errorf("%d 行解析失败，详见 failures", rr.Summary.Failed)
	}
	return nil
}

// emitReport 输出 RunReport。
// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON，摘要走 stderr。
func emitReport(stdout, stderr io.Writer, tty bool, rr domain.RunReport) {
	if !tty {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(rr)
		fmt.Fprintln(stderr, summaryLine(rr))
		return
	}

	fmt.Fprintln(stdout, summaryLine(rr))
	for _, f := range rr.Failures {
		key := f.Name
		if key == "" {
			key = fmt.Sprintf("<line %d>", f.Line)
		}
		fmt.Fprintf(stderr, "%s %s: %s\n", key, f.ErrorCode, f.ErrorMsg)
	}
}

func summaryLine(rr domain.RunReport) string {
	s := rr.Summary
	return fmt.Sprintf("完成：total=%d matched=%d oracle=%d ambiguous=%d unmatched=%d failed=%d resumed=%d",
		s.Total, s.Matched, s.Oracle, s.Ambiguous, s.Unmatched, s.Failed, s.Resumed,
	)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func isTTYWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isTTY(f)
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	return nil, false
}
