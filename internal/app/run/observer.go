package run

import (
	"time"

	"github.com/John-Robertt/packfix/internal/config"
	"github.com/John-Robertt/packfix/internal/domain"
)

// Observer 用于把运行进度从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）
// - 事件在执行 goroutine 上同步调用；实现不应阻塞
type Observer interface {
	// OnStart 在确定处理区间后调用。
	OnStart(eff config.EffectiveConfig, span Span)
	// OnItemDone 在某条记录处理并落盘后调用。
	OnItemDone(idx int, span Span, res domain.ItemResult, dur time.Duration)
	// OnFinish 在报告定稿后调用（包括致命错误提前结束的情况）。
	OnFinish(rr domain.RunReport)
}
