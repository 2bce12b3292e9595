package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/John-Robertt/packfix/internal/app/run"
	"github.com/John-Robertt/packfix/internal/config"
	"github.com/John-Robertt/packfix/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的逐条进度输出。
//
// 约束：
// - 只写 stderr，不污染 stdout 的报告输出
// - run 层只发事件，这里决定如何展示
type progressUI struct {
	w         io.Writer
	startedAt time.Time
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig, span run.Span) {
	p.startedAt = time.Now()

	mode := "write"
	if eff.DryRun {
		mode = "dry-run (不写记录/进度)"
	}

	fmt.Fprintf(p.w, "[%s] packfix run (%s)\n", p.startedAt.Format("15:04:05"), mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	if eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigPath)
	}
	fmt.Fprintf(p.w, "  records: %s\n", eff.RecordsPath)
	fmt.Fprintf(p.w, "  checkpoint: %s\n", eff.CheckpointPath)
	fmt.Fprintf(p.w, "  base_url: %s\n", truncate(eff.BaseURL, 120))
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	fmt.Fprintf(p.w, "  max_delay: %s\n", eff.MaxDelay)
	fmt.Fprintf(p.w, "  skip_prefixes: %s\n", formatStringListJSON(eff.SkipPrefixes))
	if len(eff.OnlyPacks) > 0 {
		fmt.Fprintf(p.w, "  only_packs: %s\n", formatStringListJSON(eff.OnlyPacks))
	}
	if eff.CacheDir != "" {
		fmt.Fprintf(p.w, "  cache_dir: %s\n", eff.CacheDir)
	}
	fmt.Fprintf(p.w, "范围: [%d, %d) / %d（起点来自 %s）\n\n", span.Start, span.End, span.Total, span.From)
}

func (p *progressUI) OnItemDone(idx int, span run.Span, res domain.ItemResult, dur time.Duration) {
	done := idx - span.Start + 1
	n := span.End - span.Start

	switch res.Status {
	case domain.StatusUpdated:
		fmt.Fprintf(p.w, "[%d/%d] #%d %s UPDATE %s -> %s (%s)\n",
			done, n, idx, res.ID, res.OldPack, res.NewPack, formatShortDuration(dur))
	case domain.StatusUnchanged:
		fmt.Fprintf(p.w, "[%d/%d] #%d %s OK %s (%s)\n",
			done, n, idx, res.ID, res.NewPack, formatShortDuration(dur))
	case domain.StatusSkipped:
		fmt.Fprintf(p.w, "[%d/%d] #%d %s SKIP\n", done, n, idx, res.ID)
	case domain.StatusReview:
		fmt.Fprintf(p.w, "[%d/%d] #%d %s REVIEW %s (%s)\n",
			done, n, idx, res.ID, res.ErrorCode, formatShortDuration(dur))
	default:
		fmt.Fprintf(p.w, "[%d/%d] #%d %s FAIL %s: %s (%s)\n",
			done, n, idx, res.ID, res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur))
	}
}

func (p *progressUI) OnFinish(rr domain.RunReport) {
	fmt.Fprintf(p.w, "\n耗时 %s\n", formatElapsed(time.Since(p.startedAt)))
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func formatStringListJSON(xs []string) string {
	// json.Marshal(nil slice) => "null"；对用户更友好的是 "[]"
	if xs == nil {
		xs = []string{}
	}
	b, err := json.Marshal(xs)
	if err != nil {
		return "[]"
	}
	return string(b)
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
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, (sec%3600)/60, sec%60)
}
