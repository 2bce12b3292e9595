package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/John-Robertt/packfix/internal/domain"
	"github.com/John-Robertt/packfix/internal/fetch"
	"github.com/John-Robertt/packfix/internal/infra/httpx"
	"github.com/John-Robertt/packfix/internal/logging"
	"github.com/John-Robertt/packfix/internal/store"
)

const (
	// ErrCodeNotFound 表示未找到必需的配置文件（--config 指定的文件，或无参运行时的 <cwd>/packfix.toml）。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingRecords 表示 CLI 与配置文件都没有给出记录文件路径。
	ErrCodeMissingRecords = "config_missing_records"
)

// FileName 是默认的配置文件名。
const FileName = "packfix.toml"

// CLIArgs 是 CLI 暴露的入口参数，并保留“是否显式指定”的信息。
// 例如 --start=0 必须能覆盖进度文件与 start_index。
type CLIArgs struct {
	Records    string
	ConfigPath string

	Start    int
	StartSet bool

	Limit    int
	LimitSet bool

	Skip    []string
	SkipSet bool

	BaseURL string

	Delay    time.Duration
	DelaySet bool

	DryRun   bool
	LogLevel string
}

// FileConfig 对应 packfix.toml 的解析结构。时长字段用字符串（"10s"、"500ms"）。
type FileConfig struct {
	Records      string                `toml:"records"`
	Checkpoint   string                `toml:"checkpoint"`
	BaseURL      string                `toml:"base_url"`
	ProxyURL     string                `toml:"proxy_url"`
	StartIndex   *int                  `toml:"start_index"`
	TestLimit    int                   `toml:"test_limit"`
	SkipPrefixes []string              `toml:"skip_prefixes"`
	OnlyPacks    []string              `toml:"only_packs"`
	Timeout      string                `toml:"timeout"`
	MaxDelay     string                `toml:"max_delay"`
	CacheDir     string                `toml:"cache_dir"`
	LogLevel     string                `toml:"log_level"`
	Series       map[string]SeriesFile `toml:"series"`
}

type SeriesFile struct {
	Endpoint     string `toml:"endpoint"`
	CardEndpoint string `toml:"card_endpoint"`
	Packs        int    `toml:"packs"`
	Layout       string `toml:"layout"`
}

// EffectiveConfig 是合并并规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	RecordsPath    string
	CheckpointPath string
	ConfigPath     string // 实际读到的配置文件；未读到时为空

	BaseURL  string
	ProxyURL string
	Timeout  time.Duration
	MaxDelay time.Duration
	CacheDir string

	// StartIndex 只在 StartSet=true 时生效；进度文件的优先级介于 CLI 与配置文件之间，
	// 因此需要区分“CLI 显式指定”与“来自配置文件”。
	StartIndex int
	StartSet   bool
	// StartFromFile 是配置文件的 start_index（未设置为 0）。
	StartFromFile int
	TestLimit     int

	SkipPrefixes []string
	OnlyPacks    []string
	Series       map[string]domain.SeriesDescriptor

	DryRun   bool
	LogLevel string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingRecords:
		return fmt.Sprintf("%s：未指定记录文件（CLI 参数或 %s 的 records 字段）", e.Code, FileName)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在
// 2) CLI 提供记录文件：尝试读取同目录的 packfix.toml（可选）
// 3) 都未提供：必须读取 <cwd>/packfix.toml，且其中必须包含 records
//
// 相对路径：CLI 参数相对 cwd；配置文件中的路径相对配置文件所在目录。
//
// 覆盖优先级（固定）：CLI > 配置文件 > 内置默认。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	var (
		cfgPath  string
		required bool
	)
	switch {
	case strings.TrimSpace(cli.ConfigPath) != "":
		cfgPath, required = absCleanFrom(cwdAbs, cli.ConfigPath), true
	case strings.TrimSpace(cli.Records) != "":
		cfgPath = filepath.Join(filepath.Dir(absCleanFrom(cwdAbs, cli.Records)), FileName)
	default:
		cfgPath, required = filepath.Join(cwdAbs, FileName), true
	}

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists && required {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}

	cfgDir := filepath.Dir(cfgPath)
	eff, err := merge(cwdAbs, cfgDir, cli, fc)
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			ce.Path = cfgPath
		}
		return EffectiveConfig{}, err
	}
	if exists {
		eff.ConfigPath = cfgPath
	}
	return eff, nil
}

func merge(cwd, cfgDir string, cli CLIArgs, fc FileConfig) (EffectiveConfig, error) {
	invalid := func(format string, args ...any) error {
		return &Error{Code: ErrCodeInvalid, Err: fmt.Errorf(format, args...)}
	}

	// records：CLI > config
	var records string
	switch {
	case strings.TrimSpace(cli.Records) != "":
		records = absCleanFrom(cwd, cli.Records)
	case strings.TrimSpace(fc.Records) != "":
		records = absCleanFrom(cfgDir, fc.Records)
	default:
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingRecords}
	}

	checkpoint := store.DefaultCheckpointPath(records)
	if strings.TrimSpace(fc.Checkpoint) != "" {
		checkpoint = absCleanFrom(cfgDir, fc.Checkpoint)
	}

	baseURL := fetch.DefaultBaseURL
	if s := strings.TrimSpace(fc.BaseURL); s != "" {
		baseURL = s
	}
	if s := strings.TrimSpace(cli.BaseURL); s != "" {
		baseURL = s
	}
	if err := validateHTTPURL(baseURL); err != nil {
		return EffectiveConfig{}, invalid("base_url 无效：%w", err)
	}

	proxyURL := strings.TrimSpace(fc.ProxyURL)
	if proxyURL != "" {
		if _, err := url.Parse(proxyURL); err != nil {
			return EffectiveConfig{}, invalid("proxy_url 无效：%w", err)
		}
	}

	timeout, err := parseDuration(fc.Timeout, httpx.DefaultTimeout)
	if err != nil || timeout <= 0 {
		return EffectiveConfig{}, invalid("timeout 无效：%q", fc.Timeout)
	}
	maxDelay, err := parseDuration(fc.MaxDelay, 0)
	if err != nil || maxDelay < 0 {
		return EffectiveConfig{}, invalid("max_delay 无效：%q", fc.MaxDelay)
	}
	if cli.DelaySet {
		if cli.Delay < 0 {
			return EffectiveConfig{}, invalid("--delay 不能为负数")
		}
		maxDelay = cli.Delay
	}

	startFile := 0
	if fc.StartIndex != nil {
		startFile = *fc.StartIndex
	}
	if startFile < 0 || (cli.StartSet && cli.Start < 0) {
		return EffectiveConfig{}, invalid("起始下标不能为负数")
	}

	limit := fc.TestLimit
	if cli.LimitSet {
		limit = cli.Limit
	}
	if limit < 0 {
		return EffectiveConfig{}, invalid("test_limit 不能为负数")
	}

	skip := domain.DefaultSkipPrefixes()
	if fc.SkipPrefixes != nil {
		skip = fc.SkipPrefixes
	}
	if cli.SkipSet {
		skip = cli.Skip
	}

	table, err := mergeSeries(fc.Series)
	if err != nil {
		return EffectiveConfig{}, invalid("%w", err)
	}

	logLevel := fc.LogLevel
	if strings.TrimSpace(cli.LogLevel) != "" {
		logLevel = cli.LogLevel
	}
	if _, err := logging.ParseLevel(logLevel); err != nil {
		return EffectiveConfig{}, invalid("%w", err)
	}

	cacheDir := ""
	if strings.TrimSpace(fc.CacheDir) != "" {
		cacheDir = absCleanFrom(cfgDir, fc.CacheDir)
	}

	return EffectiveConfig{
		RecordsPath:    records,
		CheckpointPath: checkpoint,
		BaseURL:        baseURL,
		ProxyURL:       proxyURL,
		Timeout:        timeout,
		MaxDelay:       maxDelay,
		CacheDir:       cacheDir,
		StartIndex:     cli.Start,
		StartSet:       cli.StartSet,
		StartFromFile:  startFile,
		TestLimit:      limit,
		SkipPrefixes:   normalizeList(skip, strings.ToLower),
		OnlyPacks:      normalizeList(fc.OnlyPacks, nil),
		Series:         table,
		DryRun:         cli.DryRun,
		LogLevel:       logLevel,
	}, nil
}

// mergeSeries 以内置表为底，按前缀整条覆盖/追加配置文件中的系列。
func mergeSeries(in map[string]SeriesFile) (map[string]domain.SeriesDescriptor, error) {
	table := domain.DefaultSeries()
	for k, s := range in {
		prefix := strings.ToLower(strings.TrimSpace(k))
		if prefix == "" || strings.Contains(prefix, "-") {
			return nil, fmt.Errorf("series 前缀非法：%q", k)
		}
		layout := domain.Layout(strings.ToLower(strings.TrimSpace(s.Layout)))
		switch layout {
		case "":
			layout = domain.LayoutCard
		case domain.LayoutCard, domain.LayoutPromo, domain.LayoutSeries:
		default:
			return nil, fmt.Errorf("series.%s.layout 只能是 card|promo|series，实际是 %q", k, s.Layout)
		}
		if s.Packs < 0 {
			return nil, fmt.Errorf("series.%s.packs 不能为负数", k)
		}
		if layout == domain.LayoutSeries && strings.TrimSpace(s.Endpoint) == "" {
			return nil, fmt.Errorf("series.%s 使用 series 布局但缺少 endpoint", k)
		}
		table[prefix] = domain.SeriesDescriptor{
			Prefix:       prefix,
			Endpoint:     strings.TrimSpace(s.Endpoint),
			CardEndpoint: strings.TrimSpace(s.CardEndpoint),
			Packs:        s.Packs,
			Layout:       layout,
		}
	}
	return table, nil
}

func validateHTTPURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("必须是 http/https：%q", s)
	}
	if u.Host == "" {
		return fmt.Errorf("缺少主机名：%q", s)
	}
	return nil
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}

// normalizeList 去空白、去空项、去重（保持顺序）。
func normalizeList(in []string, fold func(string) string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if fold != nil {
			s = fold(s)
		}
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 TOML 配置文件；未知字段报错，避免拼写错误被静默忽略。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	dec := toml.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
