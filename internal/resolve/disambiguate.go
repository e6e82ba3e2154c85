package resolve

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/John-Robertt/fundcik/internal/domain"
	"github.com/John-Robertt/fundcik/internal/oracle"
)

// Disambiguator 把一组搜索记录收敛为唯一 CIK，必要时交给 oracle 选择。
type Disambiguator struct {
	Oracle oracle.Oracle // 可为 nil：等同于禁用 oracle
	Logger *zap.Logger
}

// Resolve 的规则：
// - 0 条记录：未匹配
// - 只有一个不同的 CIK：直接返回（同一注册人下的多个份额类别）
// - 多个不同 CIK 且不能用 oracle：返回排序后的全部 CIK（ambiguous）
// - 多个不同 CIK 且允许 oracle：oracle 选出的 CIK 必须在候选中，否则按无匹配处理；ViaOracle=true
func (d *Disambiguator) Resolve(ctx context.Context, query string, records []domain.SearchRecord, allowOracle bool) domain.Resolution {
	ciks := domain.DistinctCIKs(records)
	switch len(ciks) {
	case 0:
		return domain.Resolution{}
	case 1:
		return domain.Resolution{CIK: ciks[0]}
	}

	if !allowOracle || d == nil || d.Oracle == nil {
		sorted := slices.Clone(ciks)
		slices.Sort(sorted)
		return domain.Resolution{Candidates: sorted}
	}

	log := d.logger()
	cands := make([]oracle.Candidate, 0, len(records))
	for _, r := range records {
		name := r.FullFundName
		if name == "" {
			name = r.CompanyName
		}
		cands = append(cands, oracle.Candidate{FundName: name, CIK: r.CIK})
	}

	p, err := d.Oracle.Pick(ctx, query, oracle.Dedupe(cands))
	if err != nil {
		log.Warn("oracle 失败，按无匹配处理", zap.String("query", query), zap.Int("ciks", len(ciks)), zap.Error(err))
		return domain.Resolution{ViaOracle: true}
	}
	if p.Empty() {
		log.Debug("oracle 未给出匹配", zap.String("query", query), zap.Int("ciks", len(ciks)))
		return domain.Resolution{ViaOracle: true}
	}

	cik := domain.NormalizeCIK(p.CIK)
	if !slices.Contains(ciks, cik) {
		log.Warn("oracle 返回的 CIK 不在候选中，丢弃",
			zap.String("query", query), zap.String("cik", p.CIK), zap.Strings("candidates", ciks))
		return domain.Resolution{ViaOracle: true}
	}
	log.Debug("oracle 选中", zap.String("query", query), zap.String("cik", cik), zap.String("fund_name", p.FundName))
	return domain.Resolution{CIK: cik, ViaOracle: true}
}

func (d *Disambiguator) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}
