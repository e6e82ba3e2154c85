package fundname

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Rules 是规范化与候选词推导依赖的全部数据。
// 算法只消费这些表，不对其内容/规模做任何假设。
type Rules struct {
	// Replace 只对用户文件有意义：true 表示整表替换内置规则，否则追加。
	Replace bool `yaml:"replace"`

	Abbreviations []Abbreviation `yaml:"abbreviations"`
	Rewrites      []Rewrite      `yaml:"rewrites"`
	Keywords      Keywords       `yaml:"keywords"`
}

type Abbreviation struct {
	Word   string `yaml:"word"`
	Expand string `yaml:"expand"`
}

type Rewrite struct {
	Pattern string `yaml:"pattern"`
	Replace string `yaml:"replace"`
}

type Keywords struct {
	Geo            []string `yaml:"geo"`
	Investment     []string `yaml:"investment"`
	StrategyPrefix []string `yaml:"strategy_prefix"`
}

// DefaultRules 返回内置规则（每次返回新副本，调用方可自由修改）。
func DefaultRules() (*Rules, error) {
	return parseRules(defaultRulesYAML)
}

// LoadRules 读取内置规则，并按 path（可为空）指定的用户文件追加或替换。
func LoadRules(path string) (*Rules, error) {
	base, err := DefaultRules()
	if err != nil {
		return nil, fmt.Errorf("内置规则无效：%w", err)
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return base, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	user, err := parseRules(b)
	if err != nil {
		return nil, fmt.Errorf("规则文件 %q 无效：%w", path, err)
	}
	if user.Replace {
		return user, nil
	}
	base.Merge(user)
	return base, nil
}

// Merge 把 o 追加到 r（关键词按小写去重）。
func (r *Rules) Merge(o *Rules) {
	if o == nil {
		return
	}
	r.Abbreviations = append(r.Abbreviations, o.Abbreviations...)
	r.Rewrites = append(r.Rewrites, o.Rewrites...)
	r.Keywords.Geo = unionLower(r.Keywords.Geo, o.Keywords.Geo)
	r.Keywords.Investment = unionLower(r.Keywords.Investment, o.Keywords.Investment)
	r.Keywords.StrategyPrefix = unionLower(r.Keywords.StrategyPrefix, o.Keywords.StrategyPrefix)
}

func parseRules(b []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	for i, a := range r.Abbreviations {
		if strings.TrimSpace(a.Word) == "" {
			return nil, fmt.Errorf("abbreviations[%d].word 不能为空", i)
		}
	}
	for i, rw := range r.Rewrites {
		if strings.TrimSpace(rw.Pattern) == "" {
			return nil, fmt.Errorf("rewrites[%d].pattern 不能为空", i)
		}
	}
	return &r, nil
}

func unionLower(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string(nil), a...), b...) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
