package run

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/packfix/internal/config"
	"github.com/John-Robertt/packfix/internal/domain"
	"github.com/John-Robertt/packfix/internal/fetch"
	"github.com/John-Robertt/packfix/internal/series"
	"github.com/John-Robertt/packfix/internal/store"
)

// site 是一个按路径返回固定 HTML 的假站点；未登记的路径返回 404。
type site struct {
	mu    sync.Mutex
	pages map[string]string
	hits  map[string]int
}

func newSite(t *testing.T, pages map[string]string) (*site, *httptest.Server) {
	t.Helper()
	s := &site{pages: pages, hits: map[string]int{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/cards/")
		s.mu.Lock()
		s.hits[path]++
		html, ok := s.pages[path]
		s.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
	}))
	t.Cleanup(srv.Close)
	return s, srv
}

func (s *site) hitsFor(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *site) totalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.hits {
		n += v
	}
	return n
}

func cardHTML(title, prints string) string {
	var b strings.Builder
	b.WriteString("<html><head>")
	if title != "" {
		fmt.Fprintf(&b, "<title>%s</title>", title)
	}
	b.WriteString("</head><body>")
	if prints != "" {
		fmt.Fprintf(&b, `<div class="card-prints-current">%s</div>`, prints)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// fixture 是一次运行所需的文件与配置。
type fixture struct {
	dir string
	eff config.EffectiveConfig
	st  store.Store
}

func newFixture(t *testing.T, recs []domain.CardRecord) fixture {
	t.Helper()
	dir := t.TempDir()
	recordsPath := filepath.Join(dir, "v4.json")
	eff := config.EffectiveConfig{
		RecordsPath:    recordsPath,
		CheckpointPath: store.DefaultCheckpointPath(recordsPath),
		Timeout:        2 * time.Second,
		Series:         domain.DefaultSeries(),
	}
	st := store.New(eff.RecordsPath, eff.CheckpointPath, false)
	if err := st.SaveRecords(recs); err != nil {
		t.Fatalf("写入初始记录失败：%v", err)
	}
	return fixture{dir: dir, eff: eff, st: st}
}

func (f fixture) deps(t *testing.T, baseURL string) Deps {
	t.Helper()
	c, err := fetch.New(fetch.Options{BaseURL: baseURL + "/cards/", Timeout: 2 * time.Second, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("构造 fetch client 失败：%v", err)
	}
	return Deps{
		Store:   f.st,
		Locator: series.NewLocator(f.eff.Series),
		Fetcher: c,
		Logger:  zerolog.Nop(),
		RunID:   "test-run",
	}
}

func (f fixture) packs(t *testing.T) map[string]string {
	t.Helper()
	recs, err := f.st.Load()
	if err != nil {
		t.Fatalf("读取记录失败：%v", err)
	}
	out := make(map[string]string, len(recs))
	for i := range recs {
		out[recs[i].ID()] = recs[i].Pack()
	}
	return out
}

func (f fixture) checkpoint(t *testing.T) (domain.Checkpoint, bool) {
	t.Helper()
	cp, ok, err := f.st.ReadCheckpoint()
	if err != nil {
		t.Fatalf("读取进度文件失败：%v", err)
	}
	return cp, ok
}

func records(ids ...string) []domain.CardRecord {
	out := make([]domain.CardRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.NewCardRecord(id, "card "+id, "Every"))
	}
	return out
}

// countingFetcher 记录调用次数；用于断言某些记录从未触网。
type countingFetcher struct {
	mu    sync.Mutex
	calls []string
	html  string
}

func (f *countingFetcher) Fetch(ctx context.Context, path string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, path)
	return []byte(f.html), "https://example.test/cards/" + path, nil
}

// crashingStore 在写第 crashAt 条的进度时返回错误，模拟进程在该条处理中途崩溃。
type crashingStore struct {
	store.Store
	crashAt int
}

func (s crashingStore) WriteCheckpoint(cp domain.Checkpoint) error {
	if cp.LastProcessedIndex == s.crashAt {
		return fmt.Errorf("模拟崩溃：index=%d", s.crashAt)
	}
	return s.Store.WriteCheckpoint(cp)
}

type recordObserver struct {
	starts   int
	span     Span
	items    []string
	finishes int
	last     domain.RunReport
}

func (o *recordObserver) OnStart(eff config.EffectiveConfig, span Span) {
	o.starts++
	o.span = span
}

func (o *recordObserver) OnItemDone(idx int, span Span, res domain.ItemResult, dur time.Duration) {
	o.items = append(o.items, res.ID)
}

func (o *recordObserver) OnFinish(rr domain.RunReport) {
	o.finishes++
	o.last = rr
}
