package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// globalFlags 是所有子命令共享的持久 flag。
type globalFlags struct {
	configPath string
	cacheDir   string
	rulesPath  string
	userAgent  string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var g globalFlags

	root := &cobra.Command{
		Use:   "fundcik",
		Short: "Resolve mutual fund names and tickers to SEC EDGAR CIK numbers",
		Long: `fundcik 把基金名称（可附带 ticker）解析为 SEC EDGAR 的 CIK。

解析按阶梯进行：ticker 精确检索 -> 规范化名称逐级截短检索 -> （可选）485 prospectus 检索。
多个 CIK 同时命中时，可选地交给 LLM oracle 做最终选择。
所有 EDGAR 响应都缓存到磁盘，重复运行不会重复请求。`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "配置文件路径（默认读取当前目录的 fundcik.json，若存在）")
	pf.StringVar(&g.cacheDir, "cache-dir", "", "EDGAR 响应缓存目录")
	pf.StringVar(&g.rulesPath, "rules", "", "附加/替换内置规范化规则的 YAML 文件")
	pf.StringVar(&g.userAgent, "user-agent", "", "发往 EDGAR 的 User-Agent（需包含联系方式）")
	pf.StringVar(&g.logLevel, "log-level", "", "日志级别：debug|info|warn|error")

	root.AddCommand(newRunCmd(&g))
	root.AddCommand(newResolveCmd(&g))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
