package run

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/John-Robertt/packfix/internal/config"
	"github.com/John-Robertt/packfix/internal/domain"
	"github.com/John-Robertt/packfix/internal/extract"
	"github.com/John-Robertt/packfix/internal/fetch"
	"github.com/John-Robertt/packfix/internal/pack"
	"github.com/John-Robertt/packfix/internal/series"
)

// Fetcher 是编排层依赖的页面抓取能力（*fetch.Client 或 fetch.Cached）。
type Fetcher interface {
	Fetch(ctx context.Context, path string) ([]byte, string, error)
}

// Store 是记录集合与进度文件的持久化能力（store.Store 实现）。
type Store interface {
	Load() ([]domain.CardRecord, error)
	SaveRecords(recs []domain.CardRecord) error
	ReadCheckpoint() (domain.Checkpoint, bool, error)
	WriteCheckpoint(cp domain.Checkpoint) error
	ClearCheckpoint() error
}

// Deps 汇总一次运行需要的协作者。
type Deps struct {
	Store   Store
	Locator series.Locator
	Fetcher Fetcher
	// Extractor 按布局选择解析器；为空时使用 extract.For。
	Extractor func(domain.Layout) extract.Extractor
	Logger    zerolog.Logger
	// RunID 为空时自动生成。
	RunID string
}

// Span 是本次运行实际处理的半开区间 [Start, End)。
type Span struct {
	Start int
	End   int
	Total int
	// From 说明 Start 的来源：cli | checkpoint | config。
	From string
}

// Execute 逐条处理记录：定位 -> 抓取 -> 提取 -> 规范化 -> 落盘。
//
// 约束：
// - 严格串行，一次一条；单条失败只记入报告，不中断运行
// - 记录有变化时整体覆盖写回记录文件；每条处理完都写进度文件（含促销卷状态）
// - 区间走到记录末尾时删除进度文件；被取消或受 test_limit 截断时保留
// - 返回 error 只代表致命 I/O 失败（读记录、写记录、写进度）
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps, obs Observer) (domain.RunReport, error) {
	if deps.Extractor == nil {
		deps.Extractor = extract.For
	}
	runID := deps.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := deps.Logger.With().Str("run_id", runID).Logger()

	rr := domain.RunReport{
		RunID:       runID,
		RecordsPath: eff.RecordsPath,
		DryRun:      eff.DryRun,
		StartedAt:   time.Now().UTC(),
		Items:       make([]domain.ItemResult, 0, 128),
	}

	recs, err := deps.Store.Load()
	if err != nil {
		return rr, fmt.Errorf("读取记录文件失败：%w", err)
	}
	total := len(recs)

	span, promo := resolveSpan(eff, deps.Store, total, log)
	rr.StartIndex, rr.EndIndex, rr.Total = span.Start, span.End, total

	log.Info().
		Str("records", eff.RecordsPath).
		Int("total", total).
		Int("start", span.Start).
		Int("end", span.End).
		Str("from", span.From).
		Bool("dry_run", eff.DryRun).
		Msg("开始处理")
	if obs != nil {
		obs.OnStart(eff, span)
	}

	p := processor{
		deps:    deps,
		log:     log,
		skip:    toSet(eff.SkipPrefixes),
		only:    toSet(eff.OnlyPacks),
		dry:     eff.DryRun,
		extract: deps.Extractor,
	}

	for i := span.Start; i < span.End; i++ {
		if ctx.Err() != nil {
			rr.Interrupted = true
			break
		}

		started := time.Now()
		res, changed, next, inFlightCancelled := p.one(ctx, i, &recs[i], promo)
		if inFlightCancelled {
			// 被取消的那一条不计入进度：续跑时从它重新开始。
			rr.Interrupted = true
			break
		}
		promo = next

		if !p.dry {
			if changed {
				if err := deps.Store.SaveRecords(recs); err != nil {
					return finish(rr, obs), fmt.Errorf("写入记录文件失败（index=%d id=%s）：%w", i, res.ID, err)
				}
			}
			cp := domain.Checkpoint{LastProcessedIndex: i, TotalRecords: total, Promo: promo, RunID: runID}
			if err := deps.Store.WriteCheckpoint(cp); err != nil {
				return finish(rr, obs), fmt.Errorf("写入进度文件失败（index=%d）：%w", i, err)
			}
		}

		rr.Items = append(rr.Items, res)
		if obs != nil {
			obs.OnItemDone(i, span, res, time.Since(started))
		}
	}

	if rr.Interrupted {
		log.Warn().Int("processed", len(rr.Items)).Msg("运行被取消，进度文件保留")
	} else if span.End == total && !p.dry {
		if err := deps.Store.ClearCheckpoint(); err != nil {
			return finish(rr, obs), fmt.Errorf("删除进度文件失败：%w", err)
		}
	}

	rr = finish(rr, obs)
	log.Info().
		Int("processed", rr.Summary.Processed).
		Int("updated", rr.Summary.Updated).
		Int("skipped", rr.Summary.Skipped).
		Int("errored", rr.Summary.Errored).
		Int("review", rr.Summary.Review).
		Msg("处理结束")
	return rr, nil
}

func finish(rr domain.RunReport, obs Observer) domain.RunReport {
	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	if obs != nil {
		obs.OnFinish(rr)
	}
	return rr
}

// resolveSpan 决定起点与促销卷初始状态。
//
// 起点优先级：CLI --start > 进度文件（记录总数一致时）> 配置 start_index > 0。
// CLI 指定的起点恰好等于进度文件的续跑点时，沿用其促销卷状态。
func resolveSpan(eff config.EffectiveConfig, st Store, total int, log zerolog.Logger) (Span, domain.PromoVolumeState) {
	promo := domain.NewPromoVolumeState()

	cp, ok, err := st.ReadCheckpoint()
	if err != nil {
		log.Warn().Err(err).Msg("进度文件无效，已忽略")
		ok = false
	}
	if ok && cp.TotalRecords != total {
		log.Warn().Int("checkpoint_total", cp.TotalRecords).Int("total", total).Msg("进度文件与记录数不一致，已忽略")
		ok = false
	}

	span := Span{Total: total}
	switch {
	case eff.StartSet:
		span.Start, span.From = eff.StartIndex, "cli"
		if ok && cp.NextIndex() == eff.StartIndex {
			promo = cp.Promo
		}
	case ok:
		span.Start, span.From = cp.NextIndex(), "checkpoint"
		promo = cp.Promo
	default:
		span.Start, span.From = eff.StartFromFile, "config"
	}
	if span.Start > total {
		span.Start = total
	}

	span.End = total
	if eff.TestLimit > 0 && span.Start+eff.TestLimit < total {
		span.End = span.Start + eff.TestLimit
	}
	return span, promo
}

type processor struct {
	deps    Deps
	log     zerolog.Logger
	skip    map[string]struct{}
	only    map[string]struct{}
	dry     bool
	extract func(domain.Layout) extract.Extractor
}

// one 处理单条记录。inFlightCancelled=true 表示抓取被 ctx 取消，结果不可用。
func (p processor) one(ctx context.Context, idx int, rec *domain.CardRecord, promo domain.PromoVolumeState) (res domain.ItemResult, changed bool, next domain.PromoVolumeState, inFlightCancelled bool) {
	next = promo
	id := rec.ID()
	res = domain.ItemResult{Index: idx, ID: id, Name: rec.Name(), OldPack: rec.Pack(), NewPack: rec.Pack()}
	log := p.log.With().Int("index", idx).Str("id", id).Logger()

	if _, ok := p.skip[series.Prefix(id)]; ok {
		res.Status = domain.StatusSkipped
		log.Debug().Msg("前缀在跳过列表中")
		return res, false, next, false
	}
	if len(p.only) > 0 {
		if _, ok := p.only[res.OldPack]; !ok {
			res.Status = domain.StatusSkipped
			log.Debug().Str("pack", res.OldPack).Msg("当前 pack 不在 only_packs 中")
			return res, false, next, false
		}
	}

	loc, err := p.deps.Locator.Locate(id)
	if err != nil {
		return p.fail(res, log, domain.ErrCodeUnknownSeries, err), false, next, false
	}

	html, url, err := p.deps.Fetcher.Fetch(ctx, loc.Path)
	if err != nil {
		if ctx.Err() != nil {
			return res, false, next, true
		}
		return p.fail(res, log.With().Str("url", url).Logger(), domain.ErrCodeFetchFailed, err), false, next, false
	}
	log = log.With().Str("url", url).Logger()

	raw, err := p.extract(loc.Series.Layout).Extract(html, loc.Series)
	if err != nil {
		return p.fail(res, log, domain.ErrCodeParseFailed, err), false, next, false
	}

	switch {
	case raw.Retryable():
		return p.fail(res, log, domain.ErrCodeUnresolved, fmt.Errorf("无法确定 pack（%s）", raw)), false, next, false
	case raw == domain.LabelNull:
		res.Status = domain.StatusReview
		res.ErrorCode = domain.ErrCodeNoPack
		res.ErrorMsg = "页面确认该卡没有 pack，需要人工调整"
		log.Info().Msg(res.ErrorMsg)
		return res, false, next, false
	}

	canon, st := pack.Normalize(raw, promo)
	next = st
	changed = pack.Apply(rec, canon)
	res.NewPack = string(canon)
	if changed {
		res.Status = domain.StatusUpdated
		log.Info().Str("pack", res.NewPack).Str("old_pack", res.OldPack).Msg("pack 已更新")
	} else {
		res.Status = domain.StatusUnchanged
		log.Debug().Str("pack", res.NewPack).Msg("pack 无变化")
	}
	return res, changed, next, false
}

func (p processor) fail(res domain.ItemResult, log zerolog.Logger, code string, err error) domain.ItemResult {
	var use *series.UnknownSeriesError
	var ffe *fetch.FetchFailedError
	switch {
	case errors.As(err, &use):
		code = domain.ErrCodeUnknownSeries
	case errors.As(err, &ffe):
		code = domain.ErrCodeFetchFailed
	}
	res.Status = domain.StatusError
	res.ErrorCode = code
	res.ErrorMsg = err.Error()
	log.Warn().Str("error_code", code).Err(err).Msg("本条未解析，留待续跑")
	return res
}

func toSet(xs []string) map[string]struct{} {
	m := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		if x = strings.TrimSpace(x); x != "" {
			m[x] = struct{}{}
		}
	}
	return m
}
