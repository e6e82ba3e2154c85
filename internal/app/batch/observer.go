package batch

import (
	"time"

	"github.com/John-Robertt/fundcik/internal/domain"
)

// Observer 把“运行进度/逐行结果”从批处理流程中解耦出来。
//
// 约束：
// - batch 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）
// - 事件在调用 Execute 的 goroutine 上按顺序触发；实现若自带 ticker 需自行加锁
type Observer interface {
	// OnStart 在读完输入、确定续跑位置后调用；total 是本次要处理的行数。
	OnStart(rr domain.RunReport, total int)
	// OnRowDone 在每行结果写入输出文件之后调用。
	OnRowDone(idx, total int, row domain.RowResult, dur time.Duration)
	// OnDone 在批处理结束（含中途取消）时调用。
	OnDone(rr domain.RunReport)
}
