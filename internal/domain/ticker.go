package domain

import (
	"regexp"
	"strings"
)

// Ticker 是基金份额的交易代码（形如 LOCSX）。
//
// 约束：不合法的 ticker 直接丢弃（视为没有 ticker），宁可多走一步名称搜索，也不拿脏数据去查。
type Ticker string

var tickerRE = regexp.MustCompile(`^[A-Z]{3,6}$`)

// ParseTicker 校验 ticker：3–6 个大写字母。
// 输入只做首尾空白裁剪，不做大小写转换（小写输入视为不合法）。
func ParseTicker(s string) (Ticker, bool) {
	s = strings.TrimSpace(s)
	if !tickerRE.MatchString(s) {
		return "", false
	}
	return Ticker(s), true
}
