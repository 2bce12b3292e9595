package domain

// Checkpoint 是每条记录处理后落盘的进度。
//
// 续跑从 LastProcessedIndex+1 开始；Promo 一并保存，保证续跑与不中断运行的促销卷编号一致。
type Checkpoint struct {
	LastProcessedIndex int
	TotalRecords       int
	Promo              PromoVolumeState
	RunID              string
}

// NextIndex 返回续跑的起点。
func (c Checkpoint) NextIndex() int { return c.LastProcessedIndex + 1 }
