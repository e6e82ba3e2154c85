package domain

import "strings"

// FundQuery 是一次解析的不可变输入：原始基金名 + 可选 ticker。
type FundQuery struct {
	Name   string
	Ticker Ticker // 空表示没有（或不合法已被丢弃）
}

// NewFundQuery 构造查询；rawTicker 不合法时静默丢弃。
func NewFundQuery(name, rawTicker string) FundQuery {
	t, _ := ParseTicker(rawTicker)
	return FundQuery{Name: strings.TrimSpace(name), Ticker: t}
}

// Strategy 标记候选搜索词的来源。
type Strategy string

const (
	StrategyBeforeSlash   Strategy = "before_slash"
	StrategyVerbatim      Strategy = "verbatim"
	StrategyCompanyPrefix Strategy = "company_prefix"
)

// CandidateName 是一个候选搜索词。Words 仅对 company_prefix 有意义（阶梯上的词数）。
type CandidateName struct {
	Term     string
	Strategy Strategy
	Words    int
}

// SearchRecord 是 EDGAR 结果表展平后的一行（只由解析器产生，创建后不再修改）。
//
// 约束：CIK 永远非空。
type SearchRecord struct {
	CIK          string `json:"cik"`
	SeriesID     string `json:"series_id,omitempty"`
	ClassID      string `json:"class_id,omitempty"`
	CompanyName  string `json:"company_name"`
	SeriesName   string `json:"series_name,omitempty"`
	FullFundName string `json:"full_fund_name,omitempty"`
	Ticker       string `json:"ticker,omitempty"`
}

// DistinctCIKs 返回 records 中出现过的 CIK（按首次出现顺序去重）。
func DistinctCIKs(records []SearchRecord) []string {
	seen := make(map[string]struct{}, len(records))
	out := make([]string, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.CIK]; ok {
			continue
		}
		seen[r.CIK] = struct{}{}
		out = append(out, r.CIK)
	}
	return out
}

// NormalizeCIK 把纯数字 CIK 左补零到 10 位（EDGAR 的规范写法）；其它内容只去掉首尾空白。
func NormalizeCIK(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || len(s) >= 10 {
		return s
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return s
		}
	}
	return strings.Repeat("0", 10-len(s)) + s
}
