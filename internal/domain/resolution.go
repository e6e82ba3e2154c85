package domain

import "strings"

// Stage 是解析流程中的搜索阶段。
type Stage string

const (
	StageTicker     Stage = "ticker"
	StageFundName   Stage = "fund_name"
	StageProspectus Stage = "prospectus"
)

// Outcome 是 Resolution 的三种互斥结论。
type Outcome string

const (
	OutcomeMatched    Outcome = "matched"
	OutcomeAmbiguous  Outcome = "ambiguous"
	OutcomeUnresolved Outcome = "unresolved"
)

// Attempt 记录一次“搜索 + 判定”（用于解释为什么落到了下一个候选/阶段）。
type Attempt struct {
	Stage   Stage  `json:"stage"`
	Term    string `json:"term"`
	Records int    `json:"records"`
	Result  string `json:"result,omitempty"`
	Err     string `json:"error,omitempty"`
}

// Resolution 是一次解析的最终结果。
//
// 约束：CIK 与 Candidates 至多一个非空。
// - CIK 非空：唯一匹配（ViaOracle 表示是否由 oracle 选出）
// - Candidates 非空：多个不同 CIK 且不允许/无法使用 oracle（ambiguous），由调用方决定如何呈现
// - 都为空：未匹配
type Resolution struct {
	CIK        string    `json:"cik"`
	Candidates []string  `json:"candidates,omitempty"`
	ViaOracle  bool      `json:"via_oracle"`
	Stage      Stage     `json:"stage,omitempty"`
	Attempts   []Attempt `json:"attempts,omitempty"`
}

func (r Resolution) Outcome() Outcome {
	switch {
	case r.CIK != "":
		return OutcomeMatched
	case len(r.Candidates) > 0:
		return OutcomeAmbiguous
	default:
		return OutcomeUnresolved
	}
}

// Done 表示该结果足以终止搜索阶梯（匹配或 ambiguous）。
func (r Resolution) Done() bool { return r.Outcome() != OutcomeUnresolved }

// JoinedCandidates 把 ambiguous 候选渲染为 "a/b/c"。
func (r Resolution) JoinedCandidates() string { return strings.Join(r.Candidates, "/") }
