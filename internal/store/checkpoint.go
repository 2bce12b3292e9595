package store

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/John-Robertt/packfix/internal/domain"
	"github.com/John-Robertt/packfix/internal/infra/fsx"
)

const (
	keyLastIndex   = "Last processed index"
	keyTotal       = "Total cards"
	keyProgress    = "Progress"
	keyPromoVolume = "Promo volume"
	keyPromoCards  = "Promo cards in volume"
	keyRun         = "Run"
)

// ReadCheckpoint 读取进度文件。文件不存在时 ok=false 且无错误。
func (s Store) ReadCheckpoint() (cp domain.Checkpoint, ok bool, err error) {
	b, err := os.ReadFile(s.CheckpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Checkpoint{}, false, nil
		}
		return domain.Checkpoint{}, false, err
	}
	cp, err = ParseCheckpoint(b)
	if err != nil {
		return domain.Checkpoint{}, true, fmt.Errorf("进度文件 %q 无效：%w", s.CheckpointPath, err)
	}
	return cp, true, nil
}

// WriteCheckpoint 原子覆盖写入进度文件。
func (s Store) WriteCheckpoint(cp domain.Checkpoint) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	return fsx.WriteFileAtomic(filepath.Dir(s.CheckpointPath), filepath.Base(s.CheckpointPath), FormatCheckpoint(cp))
}

// ClearCheckpoint 删除进度文件（全部处理完毕时调用）。
func (s Store) ClearCheckpoint() error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	return fsx.RemoveIfExists(s.CheckpointPath)
}

// FormatCheckpoint 输出 "Key: value" 形式的纯文本，便于人工查看与手工续跑。
func FormatCheckpoint(cp domain.Checkpoint) []byte {
	var b bytes.Buffer
	done := cp.LastProcessedIndex + 1
	pct := 0.0
	if cp.TotalRecords > 0 {
		pct = 100 * float64(done) / float64(cp.TotalRecords)
	}
	fmt.Fprintf(&b, "%s: %d\n", keyLastIndex, cp.LastProcessedIndex)
	fmt.Fprintf(&b, "%s: %d\n", keyTotal, cp.TotalRecords)
	fmt.Fprintf(&b, "%s: %d/%d (%.1f%%)\n", keyProgress, done, cp.TotalRecords, pct)
	fmt.Fprintf(&b, "%s: %d\n", keyPromoVolume, cp.Promo.VolumeIndex)
	fmt.Fprintf(&b, "%s: %d\n", keyPromoCards, cp.Promo.CardsInCurrentVolume)
	if cp.RunID != "" {
		fmt.Fprintf(&b, "%s: %s\n", keyRun, cp.RunID)
	}
	return b.Bytes()
}

// ParseCheckpoint 解析 FormatCheckpoint 的输出。
// 必填：Last processed index、Total cards；促销卷字段缺失时使用初始状态。
func ParseCheckpoint(b []byte) (domain.Checkpoint, error) {
	cp := domain.Checkpoint{Promo: domain.NewPromoVolumeState()}
	var haveLast, haveTotal bool

	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			return domain.Checkpoint{}, fmt.Errorf("无法识别的行：%q", line)
		}
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)

		var err error
		switch key {
		case keyLastIndex:
			cp.LastProcessedIndex, err = strconv.Atoi(val)
			haveLast = true
		case keyTotal:
			cp.TotalRecords, err = strconv.Atoi(val)
			haveTotal = true
		case keyPromoVolume:
			cp.Promo.VolumeIndex, err = strconv.Atoi(val)
		case keyPromoCards:
			cp.Promo.CardsInCurrentVolume, err = strconv.Atoi(val)
		case keyRun:
			cp.RunID = val
		case keyProgress:
			// 派生字段，仅供人看。
		default:
			// 未知字段忽略，保持向前兼容。
		}
		if err != nil {
			return domain.Checkpoint{}, fmt.Errorf("%s：%w", key, err)
		}
	}
	if err := sc.Err(); err != nil {
		return domain.Checkpoint{}, err
	}
	if !haveLast || !haveTotal {
		return domain.Checkpoint{}, fmt.Errorf("缺少 %q 或 %q", keyLastIndex, keyTotal)
	}
	if cp.LastProcessedIndex < -1 || cp.TotalRecords < 0 {
		return domain.Checkpoint{}, fmt.Errorf("进度值越界：last=%d total=%d", cp.LastProcessedIndex, cp.TotalRecords)
	}
	if cp.Promo.VolumeIndex < 1 || cp.Promo.CardsInCurrentVolume < 0 || cp.Promo.CardsInCurrentVolume >= domain.PromoVolumeSize {
		return domain.Checkpoint{}, fmt.Errorf("促销卷状态越界：%+v", cp.Promo)
	}
	return cp, nil
}
