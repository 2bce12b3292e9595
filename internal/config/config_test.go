package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/John-Robertt/packfix/internal/domain"
	"github.com/John-Robertt/packfix/internal/fetch"
)

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写文件失败：%v", err)
	}
}

func TestLoadEffective_ConfigNotFound(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}

	_, err = LoadEffective(cwd, CLIArgs{ConfigPath: "nope.toml"})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("--config 指向不存在的文件期望 %q，实际 %v", ErrCodeNotFound, err)
	}
}

func TestLoadEffective_ConfigMissingRecords(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`log_level = "debug"`))

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeMissingRecords {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeMissingRecords, err, Code(err))
	}
}

func TestLoadEffective_DefaultsWithCLIRecordsOnly(t *testing.T) {
	cwd := t.TempDir()

	eff, err := LoadEffective(cwd, CLIArgs{Records: "data/v4.json"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.RecordsPath != filepath.Join(cwd, "data", "v4.json") {
		t.Fatalf("records 路径不符合预期：%q", eff.RecordsPath)
	}
	if eff.CheckpointPath != filepath.Join(cwd, "data", "v4_progress.txt") {
		t.Fatalf("默认进度文件路径不符合预期：%q", eff.CheckpointPath)
	}
	if eff.ConfigPath != "" {
		t.Fatalf("未读到配置文件时 ConfigPath 应为空：%q", eff.ConfigPath)
	}
	if eff.BaseURL != fetch.DefaultBaseURL || eff.Timeout != 10*time.Second || eff.MaxDelay != 0 {
		t.Fatalf("默认值不符合预期：%+v", eff)
	}
	if diff := cmp.Diff(domain.DefaultSkipPrefixes(), eff.SkipPrefixes); diff != "" {
		t.Fatalf("默认跳过列表不符合预期（-want +got）：\n%s", diff)
	}
	if len(eff.Series) != len(domain.DefaultSeries()) {
		t.Fatalf("默认系列表条数不符合预期：%d", len(eff.Series))
	}
}

func TestLoadEffective_FileValuesRelativeToConfigDir(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "conf", "custom.toml"), []byte(`
records = "../cards/v4.json"
checkpoint = "progress.txt"
cache_dir = "cache"
start_index = 12
test_limit = 5
skip_prefixes = ["PA", " pb ", "pa", ""]
only_packs = ["Every"]
timeout = "3s"
max_delay = "250ms"

[series.c1]
endpoint = "C1?pack=0"
packs = 2
layout = "series"

[series.a1]
card_endpoint = "A1-alt"
packs = 3
`))

	eff, err := LoadEffective(cwd, CLIArgs{ConfigPath: "conf/custom.toml"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	if eff.RecordsPath != filepath.Join(cwd, "cards", "v4.json") {
		t.Fatalf("records 路径不符合预期：%q", eff.RecordsPath)
	}
	if eff.CheckpointPath != filepath.Join(cwd, "conf", "progress.txt") {
		t.Fatalf("checkpoint 路径不符合预期：%q", eff.CheckpointPath)
	}
	if eff.CacheDir != filepath.Join(cwd, "conf", "cache") {
		t.Fatalf("cache_dir 路径不符合预期：%q", eff.CacheDir)
	}
	if eff.StartSet || eff.StartFromFile != 12 || eff.TestLimit != 5 {
		t.Fatalf("起点/限额不符合预期：%+v", eff)
	}
	if diff := cmp.Diff([]string{"pa", "pb"}, eff.SkipPrefixes); diff != "" {
		t.Fatalf("跳过列表应去重并小写（-want +got）：\n%s", diff)
	}
	if eff.Timeout != 3*time.Second || eff.MaxDelay != 250*time.Millisecond {
		t.Fatalf("时长不符合预期：timeout=%v delay=%v", eff.Timeout, eff.MaxDelay)
	}

	want := domain.SeriesDescriptor{Prefix: "c1", Endpoint: "C1?pack=0", Packs: 2, Layout: domain.LayoutSeries}
	if diff := cmp.Diff(want, eff.Series["c1"]); diff != "" {
		t.Fatalf("新增系列不符合预期（-want +got）：\n%s", diff)
	}
	if got := eff.Series["a1"]; got.CardEndpoint != "A1-alt" || got.Layout != domain.LayoutCard {
		t.Fatalf("覆盖系列不符合预期：%+v", got)
	}
}

func TestLoadEffective_CLIOverridesFile(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`
records = "v4.json"
start_index = 7
test_limit = 10
skip_prefixes = ["pa"]
max_delay = "2s"
base_url = "https://example.com/cards/"
log_level = "warn"
`))

	eff, err := LoadEffective(cwd, CLIArgs{
		Start: 0, StartSet: true, // --start=0 仍然算显式指定
		Limit: 0, LimitSet: true,
		Skip: []string{}, SkipSet: true,
		Delay: 0, DelaySet: true,
		BaseURL:  "http://127.0.0.1:9999/cards/",
		LogLevel: "debug",
		DryRun:   true,
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !eff.StartSet || eff.StartIndex != 0 || eff.StartFromFile != 7 {
		t.Fatalf("--start=0 应覆盖配置：%+v", eff)
	}
	if eff.TestLimit != 0 || len(eff.SkipPrefixes) != 0 || eff.MaxDelay != 0 {
		t.Fatalf("CLI 显式零值应覆盖配置：%+v", eff)
	}
	if eff.BaseURL != "http://127.0.0.1:9999/cards/" || eff.LogLevel != "debug" || !eff.DryRun {
		t.Fatalf("CLI 覆盖不符合预期：%+v", eff)
	}
	if eff.ConfigPath != filepath.Join(cwd, FileName) {
		t.Fatalf("ConfigPath 不符合预期：%q", eff.ConfigPath)
	}
}

func TestLoadEffective_CLIRecordsFindsSiblingConfig(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "data", FileName), []byte(`only_packs = ["Every"]`))

	eff, err := LoadEffective(cwd, CLIArgs{Records: "data/v4.json"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(eff.OnlyPacks) != 1 || eff.OnlyPacks[0] != "Every" {
		t.Fatalf("应读取记录文件同目录的配置：%+v", eff.OnlyPacks)
	}
}

func TestLoadEffective_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown_field": `records = "v4.json"` + "\nconcurrency = 4",
		"bad_toml":      `records = `,
		"bad_base_url":  `records = "v4.json"` + "\nbase_url = \"ftp://x\"",
		"bad_timeout":   `records = "v4.json"` + "\ntimeout = \"soon\"",
		"zero_timeout":  `records = "v4.json"` + "\ntimeout = \"0s\"",
		"neg_delay":     `records = "v4.json"` + "\nmax_delay = \"-1s\"",
		"neg_limit":     `records = "v4.json"` + "\ntest_limit = -1",
		"neg_start":     `records = "v4.json"` + "\nstart_index = -3",
		"bad_layout":    `records = "v4.json"` + "\n[series.x1]\nlayout = \"grid\"",
		"series_no_ep":  `records = "v4.json"` + "\n[series.x1]\nlayout = \"series\"",
		"bad_prefix":    `records = "v4.json"` + "\n[series.\"x-1\"]\npacks = 1",
		"bad_log_level": `records = "v4.json"` + "\nlog_level = \"loud\"",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			cwd := t.TempDir()
			writeFile(t, filepath.Join(cwd, FileName), []byte(content))

			_, err := LoadEffective(cwd, CLIArgs{})
			if Code(err) != ErrCodeInvalid {
				t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
			}
		})
	}
}
