package domain

import "testing"

func TestParseTicker(t *testing.T) {
	cases := []struct {
		in   string
		want Ticker
		ok   bool
	}{
		{"LOCSX", "LOCSX", true},
		{" BLAH ", "BLAH", true},
		{"ABC", "ABC", true},
		{"ABCDEF", "ABCDEF", true},
		{"AB", "", false},
		{"ABCDEFG", "", false},
		{"locsx", "", false},
		{"LOC5X", "", false},
		{"", "", false},
		{"N/A", "", false},
	}
	for _, c := range cases {
		got, ok := ParseTicker(c.in)
		if got != c.want || ok != c.ok {
			t.Fatalf("ParseTicker(%q)=(%q,%v)，期望 (%q,%v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestNewFundQuery_DropsInvalidTicker(t *testing.T) {
	q := NewFundQuery("Thaler", "n/a")
	if q.Ticker != "" {
		t.Fatalf("不合法 ticker 应被丢弃：%q", q.Ticker)
	}
	q = NewFundQuery("Thaler", "LOCSX")
	if q.Ticker != "LOCSX" {
		t.Fatalf("合法 ticker 应保留：%q", q.Ticker)
	}
}

func TestDistinctCIKs_FirstSeenOrder(t *testing.T) {
	got := DistinctCIKs([]SearchRecord{{CIK: "2"}, {CIK: "1"}, {CIK: "2"}})
	if len(got) != 2 || got[0] != "2" || got[1] != "1" {
		t.Fatalf("去重结果不正确：%v", got)
	}
}
