package domain

import "testing"

func TestNormalizeCIK(t *testing.T) {
	cases := map[string]string{
		"79179":      "0000079179",
		"0000079179": "0000079179",
		" 890540 ":   "0000890540",
		"abc":        "abc",
		"":           "",
	}
	for in, want := range cases {
		if got := NormalizeCIK(in); got != want {
			t.Fatalf("NormalizeCIK(%q)=%q，期望 %q", in, got, want)
		}
	}
}
