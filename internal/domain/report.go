package domain

import (
	"encoding/json"
	"time"
)

const (
	StatusUpdated   = "updated"
	StatusUnchanged = "unchanged"
	StatusSkipped   = "skipped"
	StatusError     = "error"
	StatusReview    = "review"
)

const (
	ErrCodeUnknownSeries = "unknown_series"
	ErrCodeFetchFailed   = "fetch_failed"
	ErrCodeParseFailed   = "parse_failed"
	ErrCodeUnresolved    = "unresolved"
	ErrCodeNoPack        = "no_pack"
)

// RunReport 是对外稳定输出（stdout JSON / 摘要表）的结构。
type RunReport struct {
	RunID       string `json:"run_id"`
	RecordsPath string `json:"records_path"`
	DryRun      bool   `json:"dry_run"`

	// StartIndex/EndIndex 是本次处理的半开区间 [start, end)。
	StartIndex int `json:"start_index"`
	EndIndex   int `json:"end_index"`
	Total      int `json:"total"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Interrupted 表示被取消（信号）后在记录边界停下；进度文件保留。
	Interrupted bool `json:"interrupted"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Errored   int `json:"errored"`
	Review    int `json:"review"`
}

type ItemResult struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
	Name  string `json:"name"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	OldPack string `json:"old_pack"`
	NewPack string `json:"new_pack"`
}

// Finalize 做两件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) summary 由 items 计算得出（items 保持处理顺序，即记录数组顺序）
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	var s ReportSummary
	for _, it := range r.Items {
		s.Processed++
		switch it.Status {
		case StatusUpdated:
			s.Updated++
		case StatusSkipped:
			s.Skipped++
		case StatusError:
			s.Errored++
		case StatusReview:
			s.Review++
		}
	}
	r.Summary = s
}

// Filter 返回指定状态的条目（保持顺序）。
func (r RunReport) Filter(status string) []ItemResult {
	var out []ItemResult
	for _, it := range r.Items {
		if it.Status == status {
			out = append(out, it)
		}
	}
	return out
}

// MarshalJSON 仅用于集中约束输出的稳定性：items 为空时输出 [] 而不是 null。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	if r.Items == nil {
		r.Items = []ItemResult{}
	}
	return json.Marshal(Alias(r))
}
