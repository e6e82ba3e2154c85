// Package oracle 封装“外部文本匹配服务”：给定查询名与候选 (基金全名, CIK) 表，选出最接近的一行。
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MaxCandidates 是进入 prompt 的候选行上限（候选过多通常意味着搜索词太泛）。
const MaxCandidates = 100

// Candidate 是交给 oracle 的一行候选。
type Candidate struct {
	FundName string
	CIK      string
}

// Pick 是 oracle 的结构化回复；CIK 为空表示没有把握的匹配。
type Pick struct {
	FundName string `json:"fund_name"`
	CIK      string `json:"cik"`
}

func (p Pick) Empty() bool { return strings.TrimSpace(p.CIK) == "" }

// Oracle 是窄同步接口：重试/退避属于实现，不属于调用方。
type Oracle interface {
	Pick(ctx context.Context, query string, cands []Candidate) (Pick, error)
}

// Func 把普通函数适配为 Oracle（测试与组合用）。
type Func func(ctx context.Context, query string, cands []Candidate) (Pick, error)

func (f Func) Pick(ctx context.Context, query string, cands []Candidate) (Pick, error) {
	return f(ctx, query, cands)
}

// Dedupe 按首次出现顺序去重，并截断到 MaxCandidates。
func Dedupe(cands []Candidate) []Candidate {
	seen := make(map[Candidate]struct{}, len(cands))
	out := make([]Candidate, 0, min(len(cands), MaxCandidates))
	for _, c := range cands {
		c.FundName = strings.TrimSpace(c.FundName)
		c.CIK = strings.TrimSpace(c.CIK)
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
		if len(out) == MaxCandidates {
			break
		}
	}
	return out
}

// BuildPrompt 生成让模型在候选表中挑选最接近 query 的一行的提示词。
func BuildPrompt(query string, cands []Candidate) string {
	rows := Dedupe(cands)
	var b strings.Builder
	b.WriteString("I have this fund table which consists of 2 columns, fund name and CIK.\n")
	b.WriteString("==begin table==\n")
	for _, c := range rows {
		b.WriteString(c.FundName)
		b.WriteString(", ")
		b.WriteString(c.CIK)
		b.WriteByte('\n')
	}
	b.WriteString("==end table==\n\n")
	b.WriteString("please tell me which row whose fund name column is the closest match to\n\n")
	fmt.Fprintf(&b, "'%s'\n\n", query)
	b.WriteString("use the following format for output:\n")
	b.WriteString(`{"fund_name": "<fund_name_from_table>", "cik": "<cik_from_table>"}` + "\n")
	b.WriteString("when no match, please return an empty json object, shown below:\n")
	b.WriteString("{}\n")
	return b.String()
}

// ErrUnparsable 表示回复里找不到合法 JSON 对象。调用方应按“无匹配”处理。
var ErrUnparsable = errors.New("oracle 回复无法解析")

// ParseReply 解析模型回复：容忍 ```json 代码围栏与前后杂文；`{}` 返回空 Pick。
func ParseReply(reply string) (Pick, error) {
	s := stripFence(strings.TrimSpace(reply))
	if s == "" {
		return Pick{}, nil
	}
	if i, j := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}'); i >= 0 && j > i {
		s = s[i : j+1]
	} else {
		return Pick{}, fmt.Errorf("%w：%q", ErrUnparsable, truncate(reply, 120))
	}

	var raw struct {
		FundName string          `json:"fund_name"`
		CIK      json.RawMessage `json:"cik"`
	}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return Pick{}, fmt.Errorf("%w：%v", ErrUnparsable, err)
	}
	cik, err := rawString(raw.CIK)
	if err != nil {
		return Pick{}, fmt.Errorf("%w：cik %v", ErrUnparsable, err)
	}
	return Pick{FundName: strings.TrimSpace(raw.FundName), CIK: strings.TrimSpace(cik)}, nil
}

func stripFence(s string) string {
	start := strings.Index(s, "```json")
	end := strings.LastIndex(s, "```")
	if start >= 0 && end > start {
		return strings.TrimSpace(s[start+len("```json") : end])
	}
	if strings.HasPrefix(s, "```") && strings.HasSuffix(s, "```") && len(s) >= 6 {
		return strings.TrimSpace(s[3 : len(s)-3])
	}
	return s
}

// rawString 接受字符串或数字形式的 cik；缺失/null 视为空。
func rawString(m json.RawMessage) (string, error) {
	if len(m) == 0 || string(m) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(m, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(m, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
