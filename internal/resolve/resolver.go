// Package resolve 把一个基金名（可带 ticker）解析为 EDGAR CIK。
//
// 流程按固定顺序执行，先成功者胜出，不回溯：
//
//	ticker 搜索 -> 基金名候选逐个搜索 -> （可选）485 申报人前缀搜索
//
// 单个候选的搜索错误只记录到 Attempts，永远不会中断整个解析；
// 只有 ctx 取消/超时会让 Resolve 返回 error。
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/John-Robertt/fundcik/internal/domain"
	"github.com/John-Robertt/fundcik/internal/fundname"
	"github.com/John-Robertt/fundcik/internal/oracle"
)

// ProspectusTermLimit 是 485 搜索词的最大字符数（该入口按前缀匹配公司名）。
const ProspectusTermLimit = 20

// Searcher 是 Resolver 依赖的检索能力；*edgar.Client 满足该接口。
type Searcher interface {
	SearchTicker(ctx context.Context, t domain.Ticker) ([]domain.SearchRecord, error)
	SearchCompany(ctx context.Context, company string) ([]domain.SearchRecord, error)
	SearchProspectus(ctx context.Context, company string) ([]domain.SearchRecord, error)
}

// Options 控制一次解析启用哪些可选能力。
type Options struct {
	Oracle     bool // 基金名/485 阶段遇到多个 CIK 时是否询问 oracle
	Prospectus bool // 前两个阶段都没有结果时是否走 485 搜索
}

type Resolver struct {
	search     Searcher
	normalizer *fundname.Normalizer
	enumerator *fundname.Enumerator
	disamb     *Disambiguator
	log        *zap.Logger
}

// New 构造 Resolver。rules 为 nil 时使用内置规则；o 为 nil 时 oracle 永远不可用。
func New(s Searcher, rules *fundname.Rules, o oracle.Oracle, log *zap.Logger) (*Resolver, error) {
	if s == nil {
		return nil, errors.New("searcher 不能为空")
	}
	if rules == nil {
		r, err := fundname.DefaultRules()
		if err != nil {
			return nil, err
		}
		rules = r
	}
	n, err := fundname.NewNormalizer(rules)
	if err != nil {
		return nil, fmt.Errorf("构造 normalizer 失败：%w", err)
	}
	e, err := fundname.NewEnumerator(rules)
	if err != nil {
		return nil, fmt.Errorf("构造 enumerator 失败：%w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		search:     s,
		normalizer: n,
		enumerator: e,
		disamb:     &Disambiguator{Oracle: o, Logger: log},
		log:        log,
	}, nil
}

// Resolve 执行完整的阶梯搜索。返回的 Resolution 总是带有 Attempts 轨迹。
func (r *Resolver) Resolve(ctx context.Context, q domain.FundQuery, opt Options) (domain.Resolution, error) {
	log := r.log.With(zap.String("fund", q.Name))
	var attempts []domain.Attempt
	finish := func(res domain.Resolution, stage domain.Stage) (domain.Resolution, error) {
		res.Stage = stage
		res.Attempts = attempts
		log.Debug("resolved",
			zap.String("stage", string(stage)), zap.String("cik", res.CIK),
			zap.Strings("candidates", res.Candidates), zap.Bool("oracle", res.ViaOracle))
		return res, nil
	}

	// step 执行一次“搜索 + 判定”，并把结果记入 attempts。
	step := func(stage domain.Stage, term string, search func() ([]domain.SearchRecord, error), allowOracle bool) (domain.Resolution, error) {
		recs, err := search()
		a := domain.Attempt{Stage: stage, Term: term, Records: len(recs)}
		if err != nil {
			a.Result, a.Err = "error", err.Error()
			attempts = append(attempts, a)
			if cerr := ctx.Err(); cerr != nil {
				return domain.Resolution{}, cerr
			}
			log.Warn("搜索失败，继续下一个候选", zap.String("stage", string(stage)), zap.String("term", term), zap.Error(err))
			return domain.Resolution{}, nil
		}
		res := r.disamb.Resolve(ctx, q.Name, recs, allowOracle)
		a.Result = attemptResult(res, len(recs))
		attempts = append(attempts, a)
		if cerr := ctx.Err(); cerr != nil && !res.Done() {
			return domain.Resolution{}, cerr
		}
		return res, nil
	}

	if q.Ticker != "" {
		res, err := step(domain.StageTicker, string(q.Ticker), func() ([]domain.SearchRecord, error) {
			return r.search.SearchTicker(ctx, q.Ticker)
		}, false)
		if err != nil {
			return r.abort(attempts, err)
		}
		if res.Done() {
			return finish(res, domain.StageTicker)
		}
	}

	name := r.normalizer.Normalize(q.Name)
	if name == "" {
		return finish(domain.Resolution{}, "")
	}

	cands := r.enumerator.Enumerate(name)
	for c, ok := cands.Next(); ok; c, ok = cands.Next() {
		term := c.Term
		res, err := step(domain.StageFundName, term, func() ([]domain.SearchRecord, error) {
			return r.search.SearchCompany(ctx, term)
		}, opt.Oracle)
		if err != nil {
			return r.abort(attempts, err)
		}
		if res.Done() {
			return finish(res, domain.StageFundName)
		}
	}

	if opt.Prospectus {
		seen := make(map[string]struct{})
		cands := r.enumerator.Enumerate(name)
		for c, ok := cands.Next(); ok; c, ok = cands.Next() {
			term := TruncateTerm(c.Term, ProspectusTermLimit)
			key := strings.ToLower(term)
			if _, dup := seen[key]; dup || term == "" {
				continue
			}
			seen[key] = struct{}{}
			res, err := step(domain.StageProspectus, term, func() ([]domain.SearchRecord, error) {
				return r.search.SearchProspectus(ctx, term)
			}, opt.Oracle)
			if err != nil {
				return r.abort(attempts, err)
			}
			if res.Done() {
				return finish(res, domain.StageProspectus)
			}
		}
	}

	// 全部落空：oracle 标记必须为 false。
	return finish(domain.Resolution{}, "")
}

func (r *Resolver) abort(attempts []domain.Attempt, err error) (domain.Resolution, error) {
	return domain.Resolution{Attempts: attempts}, err
}

// TruncateTerm 按字符（rune）截断并去掉尾部空白。
func TruncateTerm(s string, n int) string {
	rs := []rune(strings.TrimSpace(s))
	if len(rs) > n {
		rs = rs[:n]
	}
	return strings.TrimSpace(string(rs))
}

func attemptResult(res domain.Resolution, records int) string {
	switch {
	case records == 0:
		return "no_records"
	case res.CIK != "" && res.ViaOracle:
		return "oracle_pick"
	case res.CIK != "":
		return "matched"
	case len(res.Candidates) > 0:
		return "ambiguous"
	case res.ViaOracle:
		return "oracle_no_pick"
	default:
		return "unresolved"
	}
}
