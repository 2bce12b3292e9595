package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/packfix/internal/app/run"
	"github.com/John-Robertt/packfix/internal/config"
	"github.com/John-Robertt/packfix/internal/domain"
	"github.com/John-Robertt/packfix/internal/fetch"
	"github.com/John-Robertt/packfix/internal/infra/cache"
	"github.com/John-Robertt/packfix/internal/logging"
	"github.com/John-Robertt/packfix/internal/series"
	"github.com/John-Robertt/packfix/internal/store"
)

func newRunCommand(cwd string, stdout, stderr io.Writer) *cobra.Command {
	var cli config.CLIArgs

	cmd := &cobra.Command{
		Use:   "run [records.json]",
		Short: "逐条解析并写回 pack（默认从进度文件续跑）",
		Long: `逐条处理记录文件：按系列定位卡牌页面，抓取并解析 pack，写回记录文件。

每处理完一条都会写进度文件；中断后再次运行会从上次的位置继续。
全部处理完毕时删除进度文件。单条解析失败不影响退出码。`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				cli.Records = args[0]
			}
			f := cmd.Flags()
			cli.StartSet = f.Changed("start")
			cli.LimitSet = f.Changed("limit")
			cli.SkipSet = f.Changed("skip")
			cli.DelaySet = f.Changed("delay")
			return runOnce(cmd.Context(), cwd, cli, stdout, stderr)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&cli.ConfigPath, "config", "c", "", "配置文件路径（默认：记录文件同目录或当前目录下的 "+config.FileName+"）")
	f.IntVar(&cli.Start, "start", 0, "起始下标（覆盖进度文件与配置）")
	f.IntVar(&cli.Limit, "limit", 0, "最多处理多少条（测试用；0 表示不限）")
	f.StringSliceVar(&cli.Skip, "skip", nil, "跳过的系列前缀，逗号分隔（覆盖配置）")
	f.StringVar(&cli.BaseURL, "base-url", "", "站点卡牌根路径（默认 "+fetch.DefaultBaseURL+"）")
	f.DurationVar(&cli.Delay, "delay", 0, "每次请求前的最大随机等待，例如 500ms")
	f.BoolVar(&cli.DryRun, "dry-run", false, "只解析并报告，不写记录文件与进度文件")
	f.StringVar(&cli.LogLevel, "log-level", "", "日志级别：debug|info|warn|error|off")
	return cmd
}

func runOnce(parent context.Context, cwd string, cli config.CLIArgs, stdout, stderr io.Writer) error {
	eff, err := config.LoadEffective(cwd, cli)
	if err != nil {
		return err
	}

	log, err := logging.New(logging.Config{Level: eff.LogLevel, Pretty: isTTY(stderr), Output: stderr})
	if err != nil {
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := store.New(eff.RecordsPath, eff.CheckpointPath, eff.DryRun)
	unlock, err := st.Lock()
	if err != nil {
		return fmt.Errorf("%s：%w", eff.RecordsPath, err)
	}
	defer func() {
		if err := unlock(); err != nil {
			log.Warn().Err(err).Msg("释放文件锁失败")
		}
	}()

	client, err := fetch.New(fetch.Options{
		BaseURL:  eff.BaseURL,
		ProxyURL: eff.ProxyURL,
		Timeout:  eff.Timeout,
		MaxDelay: eff.MaxDelay,
		Logger:   log,
	})
	if err != nil {
		return err
	}
	var fetcher run.Fetcher = client
	if eff.CacheDir != "" {
		fetcher = fetch.Cached{Next: client, Store: cache.New(eff.CacheDir, eff.DryRun), Log: log}
	}

	var obs run.Observer
	if isTTY(stderr) {
		obs = newProgressUI(stderr)
	}

	rr, runErr := run.Execute(ctx, eff, run.Deps{
		Store:   st,
		Locator: series.NewLocator(eff.Series),
		Fetcher: fetcher,
		Logger:  log,
		RunID:   uuid.NewString(),
	}, obs)

	emitReport(stdout, stderr, rr)
	return runErr
}

// emitReport：stdout 是 TTY 时输出摘要表；否则 stdout 只输出一个 RunReport JSON（摘要走 stderr）。
func emitReport(stdout, stderr io.Writer, rr domain.RunReport) {
	if isTTY(stdout) {
		fmt.Fprint(stdout, renderReport(rr))
		return
	}
	enc := json.NewEncoder(stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(rr)
	fmt.Fprintln(stderr, summaryLine(rr))
}

func summaryLine(rr domain.RunReport) string {
	s := rr.Summary
	line := fmt.Sprintf("完成：processed=%d updated=%d skipped=%d errored=%d review=%d",
		s.Processed, s.Updated, s.Skipped, s.Errored, s.Review)
	if rr.Interrupted {
		line += "（已中断，可续跑）"
	}
	if rr.DryRun {
		line += "（dry-run，未写入）"
	}
	return line
}
