package fetch

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/John-Robertt/packfix/internal/infra/httpx"
)

// DefaultBaseURL 是卡牌数据库站点的卡牌根路径。
const DefaultBaseURL = "https://pocket.limitlesstcg.com/cards/"

// FetchFailedError 表示一次页面请求在传输层失败（超时/DNS/非 2xx 等）。
// 编排层把它与“无法解析”同等对待：记为错误，留给续跑。
type FetchFailedError struct {
	URL        string
	StatusCode int // 0 表示传输层错误（没有拿到响应）
	Err        error
}

func (e *FetchFailedError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("抓取失败：%s 返回 HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("抓取失败：%s：%v", e.URL, e.Err)
}

func (e *FetchFailedError) Unwrap() error { return e.Err }

// Options 是 Client 的构造参数。
type Options struct {
	BaseURL  string
	ProxyURL string
	// Timeout 是单次请求总超时；<=0 时使用 httpx.DefaultTimeout（10s）。
	Timeout time.Duration
	// MaxDelay>0 时，每次请求前随机等待 [0, MaxDelay)，用于限速防封。
	MaxDelay time.Duration
	Logger   zerolog.Logger
}

// Client 对单个站点发起阻塞 GET。
//
// 约束：
// - 每次调用只发一次请求，不重试
// - 任何传输层失败都以 *FetchFailedError 返回，不 panic
type Client struct {
	http     *resty.Client
	base     string
	maxDelay time.Duration
	log      zerolog.Logger

	mu  sync.Mutex
	rnd *rand.Rand

	// sleep 可在测试中替换，避免真实等待。
	sleep func(ctx context.Context, d time.Duration) error
}

func New(opts Options) (*Client, error) {
	hc, err := httpx.NewPageClient(opts.ProxyURL, opts.Timeout)
	if err != nil {
		return nil, fmt.Errorf("构造 http client 失败：%w", err)
	}
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}

	rc := resty.NewWithClient(hc).
		SetRetryCount(0).
		SetHeader("Accept", "text/html,application/xhtml+xml")

	return &Client{
		http:     rc,
		base:     strings.TrimRight(base, "/"),
		maxDelay: opts.MaxDelay,
		log:      opts.Logger,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:    sleepCtx,
	}, nil
}

// URL 把相对路径拼到 base 上（路径中的查询串原样保留）。
func (c *Client) URL(path string) string {
	return c.base + "/" + strings.TrimLeft(strings.TrimSpace(path), "/")
}

// Fetch 抓取 path 对应的页面，返回 HTML 与完整 URL。
func (c *Client) Fetch(ctx context.Context, path string) ([]byte, string, error) {
	u := c.URL(path)

	if d := c.delay(); d > 0 {
		c.log.Debug().Str("url", u).Dur("delay", d).Msg("限速等待")
		if err := c.sleep(ctx, d); err != nil {
			return nil, u, &FetchFailedError{URL: u, Err: err}
		}
	}

	started := time.Now()
	resp, err := c.http.R().SetContext(ctx).Get(u)
	if err != nil {
		return nil, u, &FetchFailedError{URL: u, Err: err}
	}
	c.log.Debug().Str("url", u).Int("status", resp.StatusCode()).Dur("took", time.Since(started)).Msg("页面已返回")
	if !resp.IsSuccess() {
		return nil, u, &FetchFailedError{URL: u, StatusCode: resp.StatusCode()}
	}
	return resp.Body(), u, nil
}

func (c *Client) delay() time.Duration {
	if c.maxDelay <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(c.rnd.Int63n(int64(c.maxDelay)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
