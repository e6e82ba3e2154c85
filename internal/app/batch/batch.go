// Package batch 实现“CSV 基金名列表 -> CIK 映射”的可续跑批处理。
package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/John-Robertt/fundcik/internal/domain"
	"github.com/John-Robertt/fundcik/internal/resolve"
)

// Resolver 是批处理依赖的单行解析能力；*resolve.Resolver 满足该接口。
type Resolver interface {
	Resolve(ctx context.Context, q domain.FundQuery, opt resolve.Options) (domain.Resolution, error)
}

type Options struct {
	Input     string
	Output    string
	Unmatched string // 可选：未解析的基金名逐行追加到该文件

	Resolve resolve.Options

	// Timeout 是单行解析的上限；超时的行记为 failed/timeout，不影响后续行。
	Timeout time.Duration
	// Limit > 0 时本次最多处理 Limit 行（续跑跳过的行不计入）。
	Limit int

	RunID  string // 为空时自动生成
	Logger *zap.Logger
}

// Error 是批处理级别的致命错误（输入不可读/输出不可写），带 error_code。
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("%s：%v", e.Code, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Execute 顺序处理输入的每一行，并返回本次运行的 RunReport。
//
// 约束：
// - 输出文件中已有 N 行数据时，跳过输入的前 N 行（续跑）
// - 每行结果写入并 fsync 后才处理下一行
// - 单行失败（搜索错误/超时）降级为该行 status=failed，不中断批处理
// - ctx 取消时立即停止：当前行不写入，下次续跑会重新处理
func Execute(ctx context.Context, r Resolver, opt Options, obs Observer) (domain.RunReport, error) {
	runID := opt.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := opt.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("run_id", runID))

	rr := domain.RunReport{
		RunID:      runID,
		Input:      absOrSelf(opt.Input),
		Output:     absOrSelf(opt.Output),
		Oracle:     opt.Resolve.Oracle,
		Prospectus: opt.Resolve.Prospectus,
		StartedAt:  time.Now(),
	}
	finish := func(err error) (domain.RunReport, error) {
		rr.FinishedAt = time.Now()
		rr.Finalize()
		if obs != nil {
			obs.OnDone(rr)
		}
		return rr, err
	}

	if r == nil {
		return finish(errors.New("resolver 不能为空"))
	}
	rows, err := ReadInput(opt.Input)
	if err != nil {
		return finish(&Error{Code: domain.ErrCodeInputInvalid, Err: err})
	}
	out, done, err := openOutput(opt.Output)
	if err != nil {
		return finish(&Error{Code: domain.ErrCodeIOFailed, Err: err})
	}
	defer out.Close()

	if done > len(rows) {
		log.Warn("输出文件行数多于输入，视为全部完成", zap.Int("output_rows", done), zap.Int("input_rows", len(rows)))
		done = len(rows)
	}
	rr.Summary.Resumed = done
	todo := rows[done:]
	if opt.Limit > 0 && len(todo) > opt.Limit {
		todo = todo[:opt.Limit]
	}

	log.Info("batch start",
		zap.String("input", rr.Input), zap.String("output", rr.Output),
		zap.Int("rows", len(rows)), zap.Int("resumed", done), zap.Int("todo", len(todo)),
		zap.Bool("oracle", opt.Resolve.Oracle), zap.Bool("prospectus", opt.Resolve.Prospectus))
	if obs != nil {
		obs.OnStart(rr, len(todo))
	}

	for i, in := range todo {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		started := time.Now()
		row, err := resolveRow(ctx, r, in, opt, log)
		if err != nil {
			// 整体取消：当前行不写，留给续跑。
			return finish(err)
		}
		if err := out.Write(row); err != nil {
			return finish(&Error{Code: domain.ErrCodeIOFailed, Err: fmt.Errorf("写入输出失败：%w", err)})
		}
		if opt.Unmatched != "" && row.Status != domain.StatusMatched && row.Name != "" {
			if err := appendLines(opt.Unmatched, []string{row.Name}); err != nil {
				log.Warn("写入未匹配列表失败", zap.String("path", opt.Unmatched), zap.Error(err))
			}
		}
		rr.Add(row)
		if obs != nil {
			obs.OnRowDone(i+1, len(todo), row, time.Since(started))
		}
	}

	log.Info("batch done",
		zap.Int("total", rr.Summary.Total), zap.Int("matched", rr.Summary.Matched),
		zap.Int("oracle", rr.Summary.Oracle), zap.Int("ambiguous", rr.Summary.Ambiguous),
		zap.Int("unmatched", rr.Summary.Unmatched), zap.Int("failed", rr.Summary.Failed))
	return finish(nil)
}

// resolveRow 解析一行；只有父 ctx 被取消时才返回 error。
func resolveRow(ctx context.Context, r Resolver, in InputRow, opt Options, log *zap.Logger) (domain.RowResult, error) {
	q := domain.NewFundQuery(in.Name, in.Ticker)
	if q.Name == "" && q.Ticker == "" {
		return domain.RowResult{
			Line:       in.Line,
			Name:       in.Name,
			Ticker:     in.Ticker,
			Status:     domain.StatusFailed,
			Candidates: []string{},
			ErrorCode:  domain.ErrCodeInputInvalid,
			ErrorMsg:   "基金名为空且没有合法 ticker",
		}, nil
	}

	rctx, cancel := ctx, context.CancelFunc(func() {})
	if opt.Timeout > 0 {
		rctx, cancel = context.WithTimeout(ctx, opt.Timeout)
	}
	defer cancel()

	res, err := r.Resolve(rctx, q, opt.Resolve)
	if err == nil {
		for _, a := range res.Attempts {
			log.Debug("attempt", zap.Int("line", in.Line), zap.String("stage", string(a.Stage)),
				zap.String("term", a.Term), zap.Int("records", a.Records), zap.String("result", a.Result), zap.String("error", a.Err))
		}
		return domain.RowFromResolution(in.Line, q, in.Ticker, res), nil
	}
	if ctx.Err() != nil {
		return domain.RowResult{}, ctx.Err()
	}

	row := domain.RowResult{
		Line:       in.Line,
		Name:       q.Name,
		Ticker:     in.Ticker,
		Status:     domain.StatusFailed,
		Candidates: []string{},
		ErrorCode:  domain.ErrCodeSearchFailed,
		ErrorMsg:   err.Error(),
	}
	if errors.Is(err, context.DeadlineExceeded) {
		row.ErrorCode = domain.ErrCodeTimeout
		row.ErrorMsg = fmt.Sprintf("解析超时（%s）", opt.Timeout)
	}
	log.Warn("row failed", zap.Int("line", in.Line), zap.String("name", q.Name),
		zap.String("error_code", row.ErrorCode), zap.Error(err))
	return row, nil
}

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func absOrSelf(p string) string {
	if p == "" {
		return ""
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
