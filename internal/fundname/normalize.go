package fundname

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer 把原始基金名规范化为 EDGAR 更容易命中的写法。
//
// 约束：Normalize 是纯函数、全函数且幂等（Normalize(Normalize(x)) == Normalize(x)）。
// 为了保证幂等，“删除符号”放在所有展开之前：否则删掉引号后可能拼出新的缩写。
type Normalizer struct {
	abbrevs  []compiledRewrite
	rewrites []compiledRewrite
}

type compiledRewrite struct {
	re      *regexp.Regexp
	replace string
}

// 商标/注册符号与引号。“Â®” 这类 mojibake 要在折叠变音符号之前整体删掉，
// 否则 Â 会先被折叠成 A 粘在单词上。
var glyphReplacer = strings.NewReplacer(
	"Â®", "", "Â™", "", "Â©", "",
	"®", "", "™", "", "©", "", "℠", "",
	`"`, "", "'", "", "`", "",
	"‘", "", "’", "", "“", "", "”", "",
)

var (
	usRE    = regexp.MustCompile(`\bU\.S\b\.?`)
	spaceRE = regexp.MustCompile(`\s+`)
)

func NewNormalizer(r *Rules) (*Normalizer, error) {
	if r == nil {
		return nil, fmt.Errorf("rules 不能为空")
	}
	n := &Normalizer{}
	for _, a := range r.Abbreviations {
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(strings.TrimSpace(a.Word)) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("abbreviation %q：%w", a.Word, err)
		}
		n.abbrevs = append(n.abbrevs, compiledRewrite{re: re, replace: a.Expand})
	}
	for _, rw := range r.Rewrites {
		re, err := regexp.Compile(rw.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rewrite %q：%w", rw.Pattern, err)
		}
		n.rewrites = append(n.rewrites, compiledRewrite{re: re, replace: rw.Replace})
	}
	return n, nil
}

// Normalize 依次执行：删除符号 -> 折叠变音符号 -> & 展开 -> U.S. 合并 -> 缩写展开 -> 个例改写 -> 空白归一。
func (n *Normalizer) Normalize(raw string) string {
	s := glyphReplacer.Replace(raw)
	s = foldMarks(s)
	s = strings.ReplaceAll(s, "&", " and ")
	s = collapseSpace(s)
	s = usRE.ReplaceAllString(s, "US")
	for _, a := range n.abbrevs {
		s = a.re.ReplaceAllString(s, a.replace)
	}
	for _, rw := range n.rewrites {
		s = rw.re.ReplaceAllString(s, rw.replace)
	}
	return collapseSpace(s)
}

// foldMarks 去掉组合变音符号（NFD -> 删除 Mn -> NFC），让 "Société" 与 "Societe" 检索一致。
// 只用规范分解（非兼容分解），避免 ™/全角符号被展开成新的 ASCII 字符。
func foldMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func collapseSpace(s string) string {
	return strings.TrimSpace(spaceRE.ReplaceAllString(s, " "))
}
