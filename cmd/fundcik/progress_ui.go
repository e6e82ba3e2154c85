package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/fundcik/internal/app/batch"
	"github.com/John-Robertt/fundcik/internal/domain"
)

var _ batch.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的逐行进度输出。
//
// 设计目标：
// - 所有过程信息写到 stderr，不污染 stdout 的 JSON 输出契约
// - 事件驱动：batch 层只发事件，CLI 决定如何展示
// - keepalive：单行解析较慢（429 退避、oracle 重试）时也会定期输出一行
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	total     int
	done      int
	matched   int
	ambiguous int
	unmatched int
	fail      int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(rr domain.RunReport, total int) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.startedAt = now
	p.total = total

	fmt.Fprintf(p.w, "[%s] fundcik run %s\n", now.Format("15:04:05"), rr.RunID)
	fmt.Fprintf(p.w, "  input: %s\n", rr.Input)
	fmt.Fprintf(p.w, "  output: %s\n", rr.Output)
	fmt.Fprintf(p.w, "  oracle: %s\n", onOff(rr.Oracle))
	fmt.Fprintf(p.w, "  prospectus: %s\n", onOff(rr.Prospectus))
	if rr.Summary.Resumed > 0 {
		fmt.Fprintf(p.w, "  resumed: %d 行已完成，跳过\n", rr.Summary.Resumed)
	}
	fmt.Fprintf(p.w, "执行: rows=%d\n\n", total)

	p.lastPrinted = time.Now()
	if total > 0 && !p.tickerStarted {
		p.startTickerLocked()
	}
}

func (p *progressUI) OnRowDone(idx, total int, row domain.RowResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = idx
	p.total = total

	name := truncate(row.Name, 70)
	if name == "" {
		name = row.Ticker
	}

	switch row.Status {
	case domain.StatusMatched:
		p.matched++
		via := ""
		if row.ViaOracle {
			via = " oracle"
		}
		fmt.Fprintf(p.w, "[%d/%d] %s MATCH cik=%s%s (%s)\n",
			idx, total, name, row.CIK, via, formatShortDuration(dur),
		)
	case domain.StatusAmbiguous:
		p.ambiguous++
		fmt.Fprintf(p.w, "[%d/%d] %s AMBIG candidates=%s (%s)\n",
			idx, total, name, truncate(strings.Join(row.Candidates, "/"), 90), formatShortDuration(dur),
		)
	case domain.StatusFailed:
		p.fail++
		fmt.Fprintf(p.w, "[%d/%d] %s FAIL %s: %s (%s)\n",
			idx, total, name, row.ErrorCode, truncate(row.ErrorMsg, 160), formatShortDuration(dur),
		)
	default:
		p.unmatched++
		fmt.Fprintf(p.w, "[%d/%d] %s NONE (%s)\n",
			idx, total, name, formatShortDuration(dur),
		)
	}

	p.lastPrinted = time.Now()

	// 最后一条完成：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.done >= p.total {
		p.stopTickerLocked()
	}
}

func (p *progressUI) OnDone(rr domain.RunReport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopTickerLocked()
	elapsed := rr.FinishedAt.Sub(rr.StartedAt)
	fmt.Fprintf(p.w, "\n结束: done=%d/%d elapsed=%s\n", p.done, p.total, formatElapsed(elapsed))
	p.lastPrinted = time.Now()
}

func (p *progressUI) progressLineLocked() string {
	return fmt.Sprintf("进度: done=%d/%d matched=%d ambiguous=%d unmatched=%d fail=%d elapsed=%s",
		p.done, p.total, p.matched, p.ambiguous, p.unmatched, p.fail, formatElapsed(time.Since(p.startedAt)),
	)
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true
	stop := p.stopCh

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && p.done >= p.total {
					p.mu.Unlock()
					return
				}
				if time.Since(p.lastPrinted) > threshold {
					fmt.Fprintln(p.w, p.progressLineLocked())
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func (p *progressUI) stopTickerLocked() {
	if !p.tickerStarted {
		return
	}
	close(p.stopCh)
	p.tickerStarted = false
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// truncate 按 rune 截断，避免把多字节字符切坏。
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
