package fundname

import (
	"fmt"
	"strings"

	"github.com/John-Robertt/fundcik/internal/domain"
)

// Enumerator 从规范化后的基金名推导候选搜索词（由具体到宽泛）。
//
// 依据：基金命名习惯是“注册人品牌在前，投资策略/份额类别在后”。
// 找到第一个策略类关键词就能切出品牌部分，不需要穷举所有策略写法。
type Enumerator struct {
	geo            map[string]struct{}
	investment     map[string]struct{}
	strategyPrefix map[string]struct{}
}

func NewEnumerator(r *Rules) (*Enumerator, error) {
	if r == nil {
		return nil, fmt.Errorf("rules 不能为空")
	}
	return &Enumerator{
		geo:            toSet(r.Keywords.Geo),
		investment:     toSet(r.Keywords.Investment),
		strategyPrefix: toSet(r.Keywords.StrategyPrefix),
	}, nil
}

// Enumerate 返回一个新的惰性候选序列。每次调用得到独立的序列；序列本身不可重放。
func (e *Enumerator) Enumerate(normalized string) *Candidates {
	return &Candidates{e: e, name: strings.TrimSpace(normalized)}
}

// CompanyPrefix 返回品牌部分（按单词切分）：
// 三类关键词各自最早出现的位置（下标必须 > 0）取最小值作为切点；没有关键词时整名都是品牌。
// 下标 0 永远不作为切点，所以单词品牌不会被切成空串。
func (e *Enumerator) CompanyPrefix(name string) []string {
	words := strings.Fields(name)
	cut := len(words)
	for _, set := range []map[string]struct{}{e.geo, e.investment, e.strategyPrefix} {
		if i := firstIndexIn(words, set); i > 0 && i < cut {
			cut = i
		}
	}
	return words[:cut]
}

func firstIndexIn(words []string, set map[string]struct{}) int {
	for i, w := range words {
		if i == 0 {
			continue
		}
		if _, ok := set[strings.ToLower(w)]; ok {
			return i
		}
	}
	return -1
}

// Candidates 是惰性、有限、不可重放的候选序列。
//
// 顺序：
// 1) 含 '/' 时取第一个 '/' 之前的部分（份额类别后缀用 '/' 分隔），否则整名
// 2) 品牌前缀的所有前导子序列，从长到短
// 重复（忽略大小写）与过短（<=1 字符）的词被跳过；总数不超过 1 + 单词数，因此必然终止。
type Candidates struct {
	e    *Enumerator
	name string

	started bool
	prefix  []string
	n       int // 下一个要产出的前缀长度；0 表示阶梯已走完
	seen    map[string]struct{}
}

// Next 返回下一个候选；序列耗尽时 ok=false。
func (c *Candidates) Next() (domain.CandidateName, bool) {
	if !c.started {
		c.started = true
		c.seen = make(map[string]struct{}, 8)
		c.prefix = c.e.CompanyPrefix(c.name)
		c.n = len(c.prefix)

		first, strategy := c.name, domain.StrategyVerbatim
		if i := strings.Index(c.name, "/"); i >= 0 {
			first, strategy = strings.TrimSpace(c.name[:i]), domain.StrategyBeforeSlash
		}
		if cand, ok := c.accept(first, strategy, len(strings.Fields(first))); ok {
			return cand, true
		}
	}

	for c.n > 0 {
		n := c.n
		c.n--
		term := strings.Join(c.prefix[:n], " ")
		if cand, ok := c.accept(term, domain.StrategyCompanyPrefix, n); ok {
			return cand, true
		}
	}
	return domain.CandidateName{}, false
}

// All 把剩余候选全部取出（主要用于日志与测试）。
func (c *Candidates) All() []domain.CandidateName {
	var out []domain.CandidateName
	for {
		cand, ok := c.Next()
		if !ok {
			return out
		}
		out = append(out, cand)
	}
}

func (c *Candidates) accept(term string, s domain.Strategy, words int) (domain.CandidateName, bool) {
	term = strings.TrimSpace(term)
	if len([]rune(term)) <= 1 {
		return domain.CandidateName{}, false
	}
	k := strings.ToLower(term)
	if _, ok := c.seen[k]; ok {
		return domain.CandidateName{}, false
	}
	c.seen[k] = struct{}{}
	return domain.CandidateName{Term: term, Strategy: s, Words: words}, true
}

func toSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			m[w] = struct{}{}
		}
	}
	return m
}
