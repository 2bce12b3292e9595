package series

import (
	"fmt"
	"strings"

	"github.com/John-Robertt/packfix/internal/domain"
)

// UnknownSeriesError 表示卡牌 id 的前缀不在系列表中（或 id 本身不合法）。
// 调用方必须跳过该记录、不发网络请求，并记为错误（本次运行内不重试）。
type UnknownSeriesError struct {
	ID     string
	Prefix string
	Reason string
}

func (e *UnknownSeriesError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("未知系列：id=%q（%s）", e.ID, e.Reason)
	}
	return fmt.Sprintf("未知系列前缀 %q（id=%q）", e.Prefix, e.ID)
}

// Location 是一条记录解析后的远端定位信息。
type Location struct {
	ID     string
	Prefix string // 小写
	Number string // 去掉前导 0
	Series domain.SeriesDescriptor

	// Path 是相对 base URL 的路径，例如 "A1/1"、"P-A/12"、"A2?pack=0"。
	Path string
}

// Locator 是系列表的只读查找器。
type Locator struct {
	table map[string]domain.SeriesDescriptor
}

func NewLocator(table map[string]domain.SeriesDescriptor) Locator {
	m := make(map[string]domain.SeriesDescriptor, len(table))
	for k, d := range table {
		k = strings.ToLower(strings.TrimSpace(k))
		d.Prefix = k
		if d.Layout == "" {
			d.Layout = domain.LayoutCard
		}
		m[k] = d
	}
	return Locator{table: m}
}

// Prefix 只解析前缀（分隔符前的部分，小写），不查表。
func Prefix(id string) string {
	p, _, _ := strings.Cut(strings.TrimSpace(id), "-")
	return strings.ToLower(p)
}

// Locate 解析 id 并查表。
// 前缀缺失于表中、或 id 格式不合法时返回 *UnknownSeriesError。
func (l Locator) Locate(id string) (Location, error) {
	id = strings.TrimSpace(id)
	prefix, num, ok := strings.Cut(id, "-")
	prefix = strings.ToLower(prefix)
	if !ok || prefix == "" {
		return Location{}, &UnknownSeriesError{ID: id, Prefix: prefix, Reason: "缺少系列分隔符 '-'"}
	}
	num = strings.TrimSpace(num)
	if num == "" {
		return Location{}, &UnknownSeriesError{ID: id, Prefix: prefix, Reason: "缺少卡牌编号"}
	}
	if num = strings.TrimLeft(num, "0"); num == "" {
		num = "0"
	}

	d, found := l.table[prefix]
	if !found {
		return Location{}, &UnknownSeriesError{ID: id, Prefix: prefix}
	}

	loc := Location{ID: id, Prefix: prefix, Number: num, Series: d}
	switch d.Layout {
	case domain.LayoutSeries:
		loc.Path = d.Endpoint
		if loc.Path == "" {
			loc.Path = CasePrefix(prefix)
		}
	default:
		seg := d.CardEndpoint
		if seg == "" {
			seg = CasePrefix(prefix)
		}
		loc.Path = seg + "/" + num
	}
	return loc, nil
}

// CasePrefix 把前缀转换为站点路径的大小写：首字母大写，其余保持。
// "a1" -> "A1"，"a1a" -> "A1a"，"a2b" -> "A2b"。
func CasePrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	return strings.ToUpper(prefix[:1]) + prefix[1:]
}
