package domain

import "strings"

// RawPackLabel 是从页面提取出的原始 pack 标签（瞬时值）。
//
// 取值：显式 pack 名 / Shared(<扩展包名>) / 分类词 / 哨兵值。
// 三个哨兵必须区分：
// - null：确认该卡不存在 pack（需要人工调整，不应重试）
// - Unknown：无法判断（可在之后的续跑中重试）
// - Error：解析链路失败（同样可重试）
type RawPackLabel string

const (
	LabelUnknown RawPackLabel = "Unknown"
	LabelError   RawPackLabel = "Error"
	LabelNull    RawPackLabel = "null"
)

// SharedLabel 把扩展包名包装为共享 pack 标签。
func SharedLabel(expansion string) RawPackLabel {
	return RawPackLabel("Shared(" + strings.TrimSpace(expansion) + ")")
}

// IsSentinel 判断是否为三种哨兵之一。
func (l RawPackLabel) IsSentinel() bool {
	switch l {
	case LabelUnknown, LabelError, LabelNull:
		return true
	}
	return false
}

// Retryable 为 true 表示解析失败、值得在续跑中再试（Unknown/Error）。
func (l RawPackLabel) Retryable() bool {
	return l == LabelUnknown || l == LabelError
}

func (l RawPackLabel) IsShared() bool {
	s := string(l)
	return strings.HasPrefix(s, "Shared(") && strings.HasSuffix(s, ")")
}

// CanonicalPack 是最终写入 pack 字段的值。
type CanonicalPack string

// PromoVolumeSize 是一个促销卷包含的卡数。
const PromoVolumeSize = 5

// PromoVolumeState 是促销卷分组的计数状态。
//
// 不变量：每遇到第 5 张促销卡，CardsInCurrentVolume 归零且 VolumeIndex 加一；
// 促销卡归属处理它时的当前卷。状态必须显式传入/传出，不允许藏在全局变量里。
type PromoVolumeState struct {
	VolumeIndex          int
	CardsInCurrentVolume int
}

// NewPromoVolumeState 返回初始状态（第 1 卷，0 张）。
func NewPromoVolumeState() PromoVolumeState {
	return PromoVolumeState{VolumeIndex: 1}
}
