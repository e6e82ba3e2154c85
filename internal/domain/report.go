package domain

import (
	"encoding/json"
	"time"
)

// 行状态：每个输入行必有且只有一个状态。
const (
	StatusMatched   = "matched"
	StatusAmbiguous = "ambiguous"
	StatusUnmatched = "unmatched"
	StatusFailed    = "failed"
)

const (
	ErrCodeSearchFailed   = "search_failed"
	ErrCodeTimeout        = "timeout"
	ErrCodeIOFailed       = "io_failed"
	ErrCodeInputInvalid   = "input_invalid"
	ErrCodeConfigNotFound = "config_not_found"
	ErrCodeConfigInvalid  = "config_invalid"
)

// RowResult 是批处理中一行输入的结果（也对应输出 CSV 的一行）。
type RowResult struct {
	Line      int    `json:"line"` // 输入文件中的数据行序号（从 1 开始，不含表头）
	Name      string `json:"name"`
	Ticker    string `json:"ticker"`
	CIK       string `json:"cik"`
	ViaOracle bool   `json:"via_oracle"`

	Status     string   `json:"status"`
	Candidates []string `json:"candidates"`
	ErrorCode  string   `json:"error_code,omitempty"`
	ErrorMsg   string   `json:"error_msg,omitempty"`
}

// RowFromResolution 把 Resolution 映射为行状态。
func RowFromResolution(line int, q FundQuery, rawTicker string, r Resolution) RowResult {
	row := RowResult{
		Line:       line,
		Name:       q.Name,
		Ticker:     rawTicker,
		CIK:        r.CIK,
		ViaOracle:  r.ViaOracle && r.CIK != "",
		Candidates: []string{},
	}
	switch r.Outcome() {
	case OutcomeMatched:
		row.Status = StatusMatched
	case OutcomeAmbiguous:
		row.Status = StatusAmbiguous
		row.Candidates = append(row.Candidates, r.Candidates...)
	default:
		row.Status = StatusUnmatched
	}
	return row
}

// RunReport 是对外稳定输出（stdout JSON）的批处理摘要。
// 逐行结果写在输出 CSV 中，这里不重复保存。
type RunReport struct {
	RunID  string `json:"run_id"`
	Input  string `json:"input"`
	Output string `json:"output"`

	Oracle     bool `json:"oracle"`
	Prospectus bool `json:"prospectus"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`

	// Failures 只收集 failed 行（通常很少），便于定位。
	Failures []RowResult `json:"failures"`
}

type ReportSummary struct {
	Resumed   int `json:"resumed"` // 输出文件中已有、本次跳过的行数
	Total     int `json:"total"`   // 本次处理的行数
	Matched   int `json:"matched"`
	Oracle    int `json:"oracle"` // matched 中由 oracle 选出的行数
	Ambiguous int `json:"ambiguous"`
	Unmatched int `json:"unmatched"`
	Failed    int `json:"failed"`
}

// Add 把一行结果计入摘要。
func (r *RunReport) Add(row RowResult) {
	s := &r.Summary
	s.Total++
	switch row.Status {
	case StatusMatched:
		s.Matched++
		if row.ViaOracle {
			s.Oracle++
		}
	case StatusAmbiguous:
		s.Ambiguous++
	case StatusUnmatched:
		s.Unmatched++
	case StatusFailed:
		s.Failed++
		r.Failures = append(r.Failures, row)
	}
}

// Finalize 统一时间为 UTC（确保 JSON 为 RFC3339 且后缀 Z），并保证 slice 字段非 nil。
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	if r.Failures == nil {
		r.Failures = []RowResult{}
	}
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
