// Package logx 构造全局使用的 zap logger。
//
// 日志永远写 stderr：stdout 只承载机器可读输出（CSV 路径之外的 JSON 报告/解析结果）。
package logx

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level    string // debug/info/warn/error，默认 info
	Encoding string // console/json，默认 console

	// Output 为空时写 os.Stderr（测试时可替换）。
	Output io.Writer
}

func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if s := strings.ToLower(strings.TrimSpace(cfg.Level)); s != "" {
		if err := level.Set(s); err != nil {
			return nil, fmt.Errorf("未知日志级别：%q", cfg.Level)
		}
	}

	var enc zapcore.Encoder
	switch strings.ToLower(strings.TrimSpace(cfg.Encoding)) {
	case "", "console":
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		enc = zapcore.NewConsoleEncoder(ec)
	case "json":
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(ec)
	default:
		return nil, fmt.Errorf("未知日志编码：%q（只支持 console/json）", cfg.Encoding)
	}

	var w io.Writer = os.Stderr
	if cfg.Output != nil {
		w = cfg.Output
	}
	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), zap.NewAtomicLevelAt(level))
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}
