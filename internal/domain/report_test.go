package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestRunReport_Finalize_SummaryAndUTC(t *testing.T) {
	r := RunReport{
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Items: []ItemResult{
			{Index: 0, ID: "pa-001", Status: StatusSkipped},
			{Index: 1, ID: "a1-001", Status: StatusUpdated},
			{Index: 2, ID: "a1-002", Status: StatusUnchanged},
			{Index: 3, ID: "zz-001", Status: StatusError, ErrorCode: ErrCodeUnknownSeries},
			{Index: 4, ID: "pa-002", Status: StatusReview, ErrorCode: ErrCodeNoPack},
		},
	}

	r.Finalize()

	want := ReportSummary{Processed: 5, Updated: 1, Skipped: 1, Errored: 1, Review: 1}
	if r.Summary != want {
		t.Fatalf("summary 统计不正确：got=%+v want=%+v", r.Summary, want)
	}
	if r.Items[0].ID != "pa-001" || r.Items[4].ID != "pa-002" {
		t.Fatalf("items 必须保持处理顺序：%+v", r.Items)
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte("\"started_at\":\"2026-02-09T02:00:00Z\"")) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
}

func TestRunReport_MarshalJSON_EmptyItems(t *testing.T) {
	b, err := json.Marshal(RunReport{})
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte(`"items":[]`)) {
		t.Fatalf("空 items 应输出 []：%s", string(b))
	}
}
