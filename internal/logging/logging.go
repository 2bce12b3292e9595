package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Config 描述日志输出。
//
// 约束：
// - 日志只写 stderr（stdout 留给运行报告）
// - Pretty=true 时输出人类可读的控制台格式，否则每行一个 JSON 对象
type Config struct {
	Level  string
	Pretty bool
	Output io.Writer
}

// New 构造带时间戳的 logger。不修改 zerolog 的全局级别，便于测试并行。
func New(cfg Config) (zerolog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), err
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// ParseLevel 解析日志级别；空串视为 info。
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off":
		return zerolog.Disabled, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("未知日志级别：%q（可选 debug|info|warn|error|off）", s)
	}
}
