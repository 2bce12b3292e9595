package domain

// Layout 决定某个系列的页面用哪种 Extractor 解析。
type Layout string

const (
	// LayoutCard：单卡详情页（/cards/<Series>/<n>），显式 pack 或回退 Shared(<扩展包名>)。
	LayoutCard Layout = "card"
	// LayoutPromo：促销系列的单卡详情页，额外识别活动/商店/促销分类词。
	LayoutPromo Layout = "promo"
	// LayoutSeries：系列列表页（不带编号），只读 <title>。
	LayoutSeries Layout = "series"
)

// SeriesDescriptor 描述一个系列前缀对应的远端页面。
//
// 约束：只读参考表；每个已知前缀一条。
type SeriesDescriptor struct {
	Prefix string

	// Endpoint 是系列列表页路径（例如 "A1?pack=0"），LayoutSeries 使用。
	Endpoint string
	// CardEndpoint 覆盖单卡页的系列段（例如 "P-A"）；为空时由前缀首字母大写得到。
	CardEndpoint string

	// Packs 是该系列包含的不同 pack 数量。
	Packs  int
	Layout Layout
}

// DefaultSeries 返回内置的系列表（两个历史脚本表的并集）。
func DefaultSeries() map[string]SeriesDescriptor {
	out := map[string]SeriesDescriptor{
		"pa":  {Endpoint: "P-A", CardEndpoint: "P-A", Packs: 6, Layout: LayoutPromo},
		"pb":  {Endpoint: "P-B", CardEndpoint: "P-B", Packs: 3, Layout: LayoutPromo},
		"a1":  {Endpoint: "A1?pack=0", Packs: 3, Layout: LayoutCard},
		"a1a": {Endpoint: "A1a", Packs: 1, Layout: LayoutCard},
		"a2":  {Endpoint: "A2?pack=0", Packs: 2, Layout: LayoutCard},
		"a2a": {Endpoint: "A2a", Packs: 1, Layout: LayoutCard},
		"a2b": {Endpoint: "A2b", Packs: 1, Layout: LayoutCard},
		"a3":  {Endpoint: "A3?pack=0", Packs: 2, Layout: LayoutCard},
		"a3a": {Endpoint: "A3a", Packs: 1, Layout: LayoutCard},
		"a3b": {Endpoint: "A3b", Packs: 1, Layout: LayoutCard},
		"a4":  {Endpoint: "A4", Packs: 2, Layout: LayoutCard},
		"a4a": {Endpoint: "A4a", Packs: 1, Layout: LayoutCard},
		"a4b": {Endpoint: "A4b", Packs: 1, Layout: LayoutCard},
		"b1":  {Endpoint: "B1", Packs: 3, Layout: LayoutCard},
		"b1a": {Endpoint: "B1a", Packs: 1, Layout: LayoutCard},
	}
	for k, d := range out {
		d.Prefix = k
		out[k] = d
	}
	return out
}

// DefaultSkipPrefixes 是默认跳过的系列前缀（已知无需解析）。
func DefaultSkipPrefixes() []string {
	return []string{"pa", "pb", "a4b"}
}
