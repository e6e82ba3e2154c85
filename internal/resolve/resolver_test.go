package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/John-Robertt/fundcik/internal/domain"
	"github.com/John-Robertt/fundcik/internal/edgar"
)

type call struct {
	Kind string
	Term string
}

// stubSearcher 按 (kind, term) 返回固定记录或错误，并记录调用顺序。
type stubSearcher struct {
	results map[call][]domain.SearchRecord
	errs    map[call]error
	calls   []call
}

func (s *stubSearcher) do(ctx context.Context, c call) ([]domain.SearchRecord, error) {
	s.calls = append(s.calls, c)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.errs[c]; err != nil {
		return nil, err
	}
	return s.results[c], nil
}

func (s *stubSearcher) SearchTicker(ctx context.Context, t domain.Ticker) ([]domain.SearchRecord, error) {
	return s.do(ctx, call{"ticker", string(t)})
}

func (s *stubSearcher) SearchCompany(ctx context.Context, c string) ([]domain.SearchRecord, error) {
	return s.do(ctx, call{"company", c})
}

func (s *stubSearcher) SearchProspectus(ctx context.Context, c string) ([]domain.SearchRecord, error) {
	return s.do(ctx, call{"prospectus", c})
}

func newStubResolver(t *testing.T, s *stubSearcher) *Resolver {
	t.Helper()
	r, err := New(s, nil, nil, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	return r
}

func TestResolver_LadderOrderAndNormalization(t *testing.T) {
	s := &stubSearcher{}
	r := newStubResolver(t, s)
	res, err := r.Resolve(context.Background(), domain.NewFundQuery("JHancock Inv Global Equity R6", "zzz"), Options{Prospectus: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if res.Done() || res.ViaOracle {
		t.Fatalf("期望未匹配：%+v", res)
	}
	// 第二个 485 词截断后与第一个相同，被跳过。
	want := []call{
		{"company", "John Hancock Investment Global Equity R6"},
		{"company", "John Hancock Investment"},
		{"company", "John Hancock"},
		{"company", "John"},
		{"prospectus", "John Hancock Investm"},
		{"prospectus", "John Hancock"},
		{"prospectus", "John"},
	}
	if diff := cmp.Diff(want, s.calls); diff != "" {
		t.Fatalf("调用顺序不符合预期 (-want +got):\n%s", diff)
	}
	if len(res.Attempts) != len(want) {
		t.Fatalf("attempts 数量期望 %d，实际为 %d", len(want), len(res.Attempts))
	}
}

func TestResolver_SearchErrorDoesNotAbort(t *testing.T) {
	s := &stubSearcher{
		errs: map[call]error{
			{"ticker", "WXYZ"}:              &edgar.HTTPStatusError{StatusCode: 500},
			{"company", "Westfield Capital"}: &edgar.RateLimitedError{Attempts: 3},
		},
		results: map[call][]domain.SearchRecord{
			{"company", "Westfield"}: {{CIK: "0000890540"}},
		},
	}
	r := newStubResolver(t, s)
	res, err := r.Resolve(context.Background(), domain.NewFundQuery("Westfield Capital", "WXYZ"), Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if res.CIK != "0000890540" || res.Stage != domain.StageFundName {
		t.Fatalf("结果不符合预期：%+v", res)
	}
	if res.Attempts[0].Result != "error" || res.Attempts[1].Result != "error" || res.Attempts[2].Result != "matched" {
		t.Fatalf("attempts 不符合预期：%+v", res.Attempts)
	}
}

func TestResolver_TickerStageNeverUsesOracle(t *testing.T) {
	s := &stubSearcher{results: map[call][]domain.SearchRecord{
		{"ticker", "ABCD"}: {{CIK: "1"}, {CIK: "2"}},
	}}
	r := newStubResolver(t, s)
	res, err := r.Resolve(context.Background(), domain.NewFundQuery("Anything", "ABCD"), Options{Oracle: true})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if res.Outcome() != domain.OutcomeAmbiguous || res.Stage != domain.StageTicker {
		t.Fatalf("ticker 阶段多个 CIK 应为 ambiguous：%+v", res)
	}
	if len(s.calls) != 1 {
		t.Fatalf("ambiguous 应终止阶梯，实际调用：%+v", s.calls)
	}
}

func TestResolver_ProspectusOnlyWhenOptedIn(t *testing.T) {
	s := &stubSearcher{}
	r := newStubResolver(t, s)
	if _, err := r.Resolve(context.Background(), domain.NewFundQuery("Thaler", ""), Options{}); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	for _, c := range s.calls {
		if c.Kind == "prospectus" {
			t.Fatalf("未开启时不应走 485 搜索：%+v", s.calls)
		}
	}
}

func TestResolver_ContextCanceled(t *testing.T) {
	s := &stubSearcher{}
	r := newStubResolver(t, s)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Resolve(ctx, domain.NewFundQuery("Thaler", ""), Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("期望 context.Canceled，实际为 %v", err)
	}
	if len(s.calls) != 1 {
		t.Fatalf("取消后不应继续搜索：%+v", s.calls)
	}
}

func TestTruncateTerm(t *testing.T) {
	cases := map[string]string{
		"Capstone Large Cap Equity C": "Capstone Large Cap E",
		"Short":                       "Short",
		"Nineteen chars abc D":        "Nineteen chars abc D",
		"Exactly twenty chars plus":   "Exactly twenty chars",
		"Société Générale Fonds":      "Société Générale Fon",
	}
	for in, want := range cases {
		if got := TruncateTerm(in, ProspectusTermLimit); got != want {
			t.Fatalf("TruncateTerm(%q)=%q，期望 %q", in, got, want)
		}
	}
}
