package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/John-Robertt/packfix/internal/domain"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// renderReport 输出摘要表；有错误或待人工处理的条目时再附一张明细表。
func renderReport(rr domain.RunReport) string {
	var b strings.Builder
	s := rr.Summary
	b.WriteString(renderTable(
		[]string{"range", "processed", "updated", "skipped", "errored", "review"},
		[][]string{{
			fmt.Sprintf("[%d, %d) / %d", rr.StartIndex, rr.EndIndex, rr.Total),
			strconv.Itoa(s.Processed),
			strconv.Itoa(s.Updated),
			strconv.Itoa(s.Skipped),
			strconv.Itoa(s.Errored),
			strconv.Itoa(s.Review),
		}},
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	))
	b.WriteString("\n")

	var rows [][]string
	for _, it := range rr.Items {
		if it.Status != domain.StatusError && it.Status != domain.StatusReview {
			continue
		}
		rows = append(rows, []string{strconv.Itoa(it.Index), it.ID, it.Status, it.ErrorCode, truncate(it.ErrorMsg, 80)})
	}
	if len(rows) > 0 {
		b.WriteString(renderTable(
			[]string{"index", "id", "status", "code", "message"},
			rows,
			[]columnAlignment{alignRight},
		))
		b.WriteString("\n")
	}
	b.WriteString(summaryLine(rr))
	b.WriteString("\n")
	return b.String()
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
