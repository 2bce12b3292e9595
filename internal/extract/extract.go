package extract

import (
	"bytes"
	"errors"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/packfix/internal/domain"
)

// Extractor 把抓取到的页面解析为原始 pack 标签。
//
// 约束：
// - 必须是纯函数：相同输入 => 相同输出
// - 只在 HTML 无法解析时返回 error（此时标签为 Error）；“没找到”用哨兵表达
type Extractor interface {
	Extract(html []byte, d domain.SeriesDescriptor) (domain.RawPackLabel, error)
}

// For 按系列的页面布局选择 Extractor。
func For(layout domain.Layout) Extractor {
	switch layout {
	case domain.LayoutPromo:
		return PromoCardPage{}
	case domain.LayoutSeries:
		return SeriesPage{}
	default:
		return CardPage{}
	}
}

const printsSelector = "div.card-prints-current"

// CardPage 解析单卡详情页：显式 pack -> 标题回退 Shared(<扩展包名>) -> Unknown。
type CardPage struct{}

func (CardPage) Extract(html []byte, _ domain.SeriesDescriptor) (domain.RawPackLabel, error) {
	doc, err := parse(html)
	if err != nil {
		return domain.LabelError, err
	}
	if text, ok := printsText(doc); ok {
		if name := explicitPack(text); name != "" {
			return domain.RawPackLabel(name), nil
		}
	}
	return sharedFromTitle(doc), nil
}

// PromoCardPage 解析促销系列的单卡详情页。
//
// 与 CardPage 的差异：
// - 显式 pack 之后，再识别活动/商店/促销分类词
// - 区域存在但什么都没匹配到时返回 null（确认无 pack，需要人工处理），不再回退标题
type PromoCardPage struct{}

var categoryRE = regexp.MustCompile(`Shop|Campaign|Premium Missions|Missions|Promo pack|Wonder Pick`)

func (PromoCardPage) Extract(html []byte, _ domain.SeriesDescriptor) (domain.RawPackLabel, error) {
	doc, err := parse(html)
	if err != nil {
		return domain.LabelError, err
	}
	if text, ok := printsText(doc); ok {
		if name := explicitPack(text); name != "" {
			return domain.RawPackLabel(name), nil
		}
		if m := categoryRE.FindString(text); m != "" {
			return domain.RawPackLabel(m), nil
		}
		return domain.LabelNull, nil
	}
	return sharedFromTitle(doc), nil
}

// SeriesPage 解析系列列表页：只有 1 个 pack 的系列直接用扩展包名，否则 Shared(<扩展包名>)。
type SeriesPage struct{}

func (SeriesPage) Extract(html []byte, d domain.SeriesDescriptor) (domain.RawPackLabel, error) {
	doc, err := parse(html)
	if err != nil {
		return domain.LabelError, err
	}
	title := normSpace(doc.Find("title").First().Text())
	name, _, _ := strings.Cut(title, "(")
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.LabelUnknown, nil
	}
	if d.Packs == 1 {
		return domain.RawPackLabel(name), nil
	}
	return domain.SharedLabel(name), nil
}

func parse(html []byte) (*goquery.Document, error) {
	if len(bytes.TrimSpace(html)) == 0 {
		return nil, errors.New("html 为空")
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(html))
}

func printsText(doc *goquery.Document) (string, bool) {
	sel := doc.Find(printsSelector).First()
	if sel.Length() == 0 {
		return "", false
	}
	return sel.Text(), true
}

// 形如 "#1 · ◊ · Mewtwo pack"：以 '·' 分段，某段以 " pack" 结尾即为显式 pack。
var packSegmentRE = regexp.MustCompile(`(?i)^(.*\S)\s+pack\b`)

func explicitPack(text string) string {
	for _, part := range strings.Split(text, "·") {
		m := packSegmentRE.FindStringSubmatch(normSpace(part))
		if m == nil {
			continue
		}
		if name := strings.TrimSpace(m[1]); name != "" {
			return name
		}
	}
	return ""
}

// sharedFromTitle 从 "<卡名> • <扩展包名> (<系列代码>) #<编号>" 中取扩展包名。
// 没有 '•' 时取 '(' 之前的全部；标题缺失或为空时返回 Unknown。
func sharedFromTitle(doc *goquery.Document) domain.RawPackLabel {
	title := normSpace(doc.Find("title").First().Text())
	if title == "" {
		return domain.LabelUnknown
	}
	rest := title
	if _, after, ok := strings.Cut(title, "•"); ok {
		rest = after
	}
	name, _, _ := strings.Cut(rest, "(")
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.LabelUnknown
	}
	return domain.SharedLabel(name)
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }
