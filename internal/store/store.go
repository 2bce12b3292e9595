package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/John-Robertt/packfix/internal/domain"
	"github.com/John-Robertt/packfix/internal/infra/fsx"
)

var (
	ErrReadOnly = errors.New("store: read-only")
	// ErrLocked 表示另一个进程正在写同一份记录文件。
	ErrLocked = errors.New("store: 记录文件正被另一个运行占用")
)

// Store 管理记录文件（JSON 数组）与进度文件（纯文本）。
//
// 约束：
// - 每次保存都整体覆盖（原子 temp+rename），不是追加日志
// - 数组顺序即处理顺序，写回时保持不变
// - 同一份文件只允许一个写者：Lock 用文件锁强制这一前提
type Store struct {
	RecordsPath    string
	CheckpointPath string
	ReadOnly       bool
}

func New(recordsPath, checkpointPath string, readOnly bool) Store {
	return Store{
		RecordsPath:    filepath.Clean(strings.TrimSpace(recordsPath)),
		CheckpointPath: filepath.Clean(strings.TrimSpace(checkpointPath)),
		ReadOnly:       readOnly,
	}
}

// DefaultCheckpointPath 返回记录文件同目录下的默认进度文件路径。
func DefaultCheckpointPath(recordsPath string) string {
	dir := filepath.Dir(recordsPath)
	base := strings.TrimSuffix(filepath.Base(recordsPath), filepath.Ext(recordsPath))
	return filepath.Join(dir, base+"_progress.txt")
}

// Load 读取整份记录集合。
func (s Store) Load() ([]domain.CardRecord, error) {
	b, err := os.ReadFile(s.RecordsPath)
	if err != nil {
		return nil, err
	}
	var recs []domain.CardRecord
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, fmt.Errorf("解析记录文件 %q 失败：%w", s.RecordsPath, err)
	}
	return recs, nil
}

// SaveRecords 整体覆盖写入记录集合（2 空格缩进，不转义非 ASCII 与 <>&）。
func (s Store) SaveRecords(recs []domain.CardRecord) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	if recs == nil {
		recs = []domain.CardRecord{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(recs); err != nil {
		return err
	}
	return fsx.WriteFileAtomic(filepath.Dir(s.RecordsPath), filepath.Base(s.RecordsPath), buf.Bytes())
}

// Lock 获取记录文件的独占锁（<records>.lock）。只读模式不加锁。
func (s Store) Lock() (unlock func() error, err error) {
	if s.ReadOnly {
		return func() error { return nil }, nil
	}
	fl := flock.New(s.RecordsPath + ".lock")
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("获取文件锁失败：%w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() error {
		if err := fl.Unlock(); err != nil {
			return err
		}
		return fsx.RemoveIfExists(fl.Path())
	}, nil
}
