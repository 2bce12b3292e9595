package pack

import (
	"fmt"
	"regexp"

	"github.com/John-Robertt/packfix/internal/domain"
)

var promoRE = regexp.MustCompile(`(?i)^\s*promo(\s+pack)?\s*$`)

// IsPromo 判断原始标签是否属于促销分类（"Promo" 或 "Promo pack"）。
func IsPromo(raw domain.RawPackLabel) bool {
	return promoRE.MatchString(string(raw))
}

// Normalize 把原始标签转换为规范 pack，并返回（可能推进后的）促销卷状态。
//
// 规则：
// - 促销分类：使用当前卷号得到 "Promo V<n>"，再把当前卷计数加一；满 5 张则换下一卷
// - Shared(...)、哨兵、显式 pack 名：原样透传，状态不变
//
// 卷边界只由促销卡出现的先后顺序决定，与卡本身无关。
func Normalize(raw domain.RawPackLabel, st domain.PromoVolumeState) (domain.CanonicalPack, domain.PromoVolumeState) {
	if !IsPromo(raw) {
		return domain.CanonicalPack(raw), st
	}
	if st.VolumeIndex < 1 {
		st = domain.NewPromoVolumeState()
	}

	out := domain.CanonicalPack(fmt.Sprintf("Promo V%d", st.VolumeIndex))
	st.CardsInCurrentVolume++
	if st.CardsInCurrentVolume >= domain.PromoVolumeSize {
		st.CardsInCurrentVolume = 0
		st.VolumeIndex++
	}
	return out, st
}

// Apply 把规范值写入记录；值与现有 pack 相同时不做任何修改并返回 false（幂等）。
func Apply(rec *domain.CardRecord, canon domain.CanonicalPack) bool {
	if rec.Pack() == string(canon) {
		return false
	}
	rec.SetPack(string(canon))
	return true
}
