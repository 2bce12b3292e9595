package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		os.Exit(1)
	}
	os.Exit(execute(os.Args[1:], cwd, os.Stdout, os.Stderr))
}

// 退出码约定：0 跑完（单条失败不算）；1 致命错误；2 用法错误。
const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

// usageError 标记参数/子命令用法错误（退出码 2）。
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func execute(args []string, cwd string, stdout, stderr io.Writer) int {
	root := newRootCommand(cwd, stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(stderr, "错误：%v\n", err)

	var ue usageError
	if errors.As(err, &ue) {
		fmt.Fprintln(stderr)
		fmt.Fprint(stderr, root.UsageString())
		return exitUsage
	}
	return exitFatal
}

func newRootCommand(cwd string, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "packfix",
		Short:         "为卡牌记录补全 pack 字段（可断点续跑）",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	root.AddCommand(newRunCommand(cwd, stdout, stderr))
	return root
}

// usageArgs 把位置参数校验错误标记为用法错误。
func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}
