package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/packfix/internal/infra/fsx"
)

// Store 提供 <dir>/pages/ 下的页面 HTML 缓存读写。
//
// 约束：
// - dry-run：只允许读（ReadOnly=true）
// - 只缓存抓取成功的页面；失败不落盘
type Store struct {
	Root     string
	ReadOnly bool
}

var ErrReadOnly = errors.New("cache: read-only")

func New(root string, readOnly bool) Store {
	return Store{
		Root:     filepath.Clean(strings.TrimSpace(root)),
		ReadOnly: readOnly,
	}
}

// PagePath 返回 key（站点相对路径）对应的缓存文件绝对路径。
func (s Store) PagePath(key string) (string, error) {
	name, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, "pages", name+".html"), nil
}

func (s Store) ReadPage(key string) ([]byte, bool, error) {
	path, err := s.PagePath(key)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (s Store) WritePage(key string, html []byte) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	name, err := cleanKey(key)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(filepath.Join(s.Root, "pages"), name+".html", html)
}

var unsafeKeyRE = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// cleanKey 把 "A1/1"、"A2?pack=0" 之类的路径压成单个安全文件名，避免路径穿越。
func cleanKey(key string) (string, error) {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", fmt.Errorf("缓存 key 不能为空")
	}
	name := strings.Trim(unsafeKeyRE.ReplaceAllString(key, "_"), "_")
	if name == "" {
		return "", fmt.Errorf("非法缓存 key：%q", key)
	}
	return name, nil
}
