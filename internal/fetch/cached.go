package fetch

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/packfix/internal/infra/cache"
)

// Source 是 Cached 依赖的下游抓取器（通常是 *Client）。
type Source interface {
	Fetch(ctx context.Context, path string) ([]byte, string, error)
	URL(path string) string
}

// Cached 先查页面缓存，未命中再走网络；成功抓取的页面写回缓存（只读模式下跳过）。
type Cached struct {
	Next  Source
	Store cache.Store
	Log   zerolog.Logger
}

func (c Cached) URL(path string) string { return c.Next.URL(path) }

func (c Cached) Fetch(ctx context.Context, path string) ([]byte, string, error) {
	if b, ok, err := c.Store.ReadPage(path); err == nil && ok {
		c.Log.Debug().Str("path", path).Msg("命中页面缓存")
		return b, c.Next.URL(path), nil
	} else if err != nil {
		// 坏缓存不影响主流程：忽略并走网络。
		c.Log.Warn().Err(err).Str("path", path).Msg("读取页面缓存失败")
	}

	b, u, err := c.Next.Fetch(ctx, path)
	if err != nil {
		return nil, u, err
	}
	if !c.Store.ReadOnly {
		if werr := c.Store.WritePage(path, b); werr != nil {
			c.Log.Warn().Err(werr).Str("path", path).Msg("写入页面缓存失败")
		}
	}
	return b, u, nil
}
