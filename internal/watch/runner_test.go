package watch

import (
	"context"
	"fmt"
	"testing"

	"opinion-radar/internal/crawler"
	"opinion-radar/internal/model"
)

type stubCrawler struct {
	records []model.Record
	err     error
	calls   int
}

func (s *stubCrawler) Crawl(context.Context, string, int) ([]model.Record, error) {
	s.calls++
	return s.records, s.err
}

type stubAnalyzer struct {
	items []model.SentimentItem
	err   error
	calls int
}

func (s *stubAnalyzer) Analyze(context.Context, []model.Record) ([]model.SentimentItem, error) {
	s.calls++
	return s.items, s.err
}

type stubNotifier struct {
	subjects []string
	bodies   []string
	err      error
}

func (s *stubNotifier) Notify(_ context.Context, _ model.NotifyTarget, subject, body string) error {
	s.subjects = append(s.subjects, subject)
	s.bodies = append(s.bodies, body)
	return s.err
}

type stubHistory struct {
	runs []model.RunHistory
}

func (s *stubHistory) RecordRun(_ context.Context, h model.RunHistory) error {
	s.runs = append(s.runs, h)
	return nil
}

func intPtr(v int) *int { return &v }

func crawlRecords(n int) []model.Record {
	out := make([]model.Record, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.Record{
			URL:      fmt.Sprintf("https://example.com/%d", i),
			Title:    fmt.Sprintf("标题%d", i),
			Author:   "普通用户",
			Comments: []string{fmt.Sprintf("这是第%d条有效评论", i)},
		})
	}
	return out
}

func sentiments(pos, neg, neutral, invalid int) []model.SentimentItem {
	out := make([]model.SentimentItem, 0, pos+neg+neutral+invalid)
	for i := 0; i < pos; i++ {
		out = append(out, model.SentimentItem{IsValid: true, Sentiment: model.SentimentPositive, Keywords: []string{}})
	}
	for i := 0; i < neg; i++ {
		out = append(out, model.SentimentItem{IsValid: true, Sentiment: model.SentimentNegative, Keywords: []string{}})
	}
	for i := 0; i < neutral; i++ {
		out = append(out, model.SentimentItem{IsValid: true, Sentiment: model.SentimentNeutral, Keywords: []string{}})
	}
	for i := 0; i < invalid; i++ {
		out = append(out, model.SentimentItem{IsValid: false, Sentiment: model.SentimentNeutral, Keywords: []string{}})
	}
	return out
}

func testWatch() model.Watch {
	return model.Watch{
		ID:       "w1",
		UserID:   "u",
		Keyword:  "火锅",
		Platform: "xhs",
		MaxCount: 10,
		Notify:   model.NotifyTarget{Email: "a@example.com"},
	}
}

func TestRunner_UnknownPlatform(t *testing.T) {
	r := NewRunner(map[string]crawler.Crawler{}, &stubAnalyzer{}, &stubNotifier{}, nil)

	w := testWatch()
	w.Platform = "weibo"
	summary := r.Run(context.Background(), w)
	if summary.OK {
		t.Fatalf("expected failure for unknown platform: %+v", summary)
	}
}

func TestRunner_CrawlFailure(t *testing.T) {
	hist := &stubHistory{}
	r := NewRunner(
		map[string]crawler.Crawler{"xhs": &stubCrawler{err: fmt.Errorf("browser gone")}},
		&stubAnalyzer{}, &stubNotifier{}, hist,
	)

	summary := r.Run(context.Background(), testWatch())
	if summary.OK {
		t.Fatalf("expected failure: %+v", summary)
	}
	if len(hist.runs) != 1 || hist.runs[0].Status != model.HistoryStatusFailed {
		t.Fatalf("failure not recorded: %+v", hist.runs)
	}
}

func TestRunner_EmptyCrawlIsNotFailure(t *testing.T) {
	analyzer := &stubAnalyzer{}
	notif := &stubNotifier{}
	r := NewRunner(
		map[string]crawler.Crawler{"xhs": &stubCrawler{}},
		analyzer, notif, nil,
	)

	summary := r.Run(context.Background(), testWatch())
	if !summary.OK {
		t.Fatalf("empty crawl should be ok: %+v", summary)
	}
	if summary.Triggered {
		t.Fatal("empty crawl should not trigger")
	}
	if analyzer.calls != 0 {
		t.Fatal("analyzer should not run without data")
	}
	if len(notif.subjects) != 0 {
		t.Fatal("no notification expected")
	}
}

func TestRunner_ThresholdTrigger(t *testing.T) {
	notif := &stubNotifier{}
	r := NewRunner(
		map[string]crawler.Crawler{"xhs": &stubCrawler{records: crawlRecords(5)}},
		&stubAnalyzer{items: sentiments(5, 100, 0, 0)},
		notif, nil,
	)

	// 正面阈值恰好达到，负面未设阈值：只应有一条正面触发原因。
	w := testWatch()
	w.PositiveThreshold = intPtr(5)

	summary := r.Run(context.Background(), w)
	if !summary.OK || !summary.Triggered {
		t.Fatalf("expected trigger: %+v", summary)
	}
	if len(summary.Reasons) != 1 {
		t.Fatalf("expected exactly 1 reason, got %v", summary.Reasons)
	}
	if summary.Positive != 5 || summary.Negative != 100 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if len(notif.subjects) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notif.subjects))
	}
}

func TestRunner_NoThresholdsNoTrigger(t *testing.T) {
	notif := &stubNotifier{}
	r := NewRunner(
		map[string]crawler.Crawler{"xhs": &stubCrawler{records: crawlRecords(5)}},
		&stubAnalyzer{items: sentiments(3, 2, 0, 0)},
		notif, nil,
	)

	summary := r.Run(context.Background(), testWatch())
	if !summary.OK || summary.Triggered {
		t.Fatalf("expected quiet run: %+v", summary)
	}
	if len(notif.subjects) != 0 {
		t.Fatal("no notification expected without thresholds")
	}
}

func TestRunner_InvalidItemsExcludedFromCounts(t *testing.T) {
	r := NewRunner(
		map[string]crawler.Crawler{"xhs": &stubCrawler{records: crawlRecords(5)}},
		&stubAnalyzer{items: sentiments(1, 1, 1, 2)},
		&stubNotifier{}, nil,
	)

	summary := r.Run(context.Background(), testWatch())
	if summary.Total != 5 || summary.Valid != 3 {
		t.Fatalf("unexpected counts: total=%d valid=%d", summary.Total, summary.Valid)
	}
	if summary.Positive != 1 || summary.Negative != 1 {
		t.Fatalf("invalid items leaked into counts: %+v", summary)
	}
}

func TestRunner_NotifyFailureDoesNotFailRun(t *testing.T) {
	hist := &stubHistory{}
	r := NewRunner(
		map[string]crawler.Crawler{"xhs": &stubCrawler{records: crawlRecords(5)}},
		&stubAnalyzer{items: sentiments(0, 10, 0, 0)},
		&stubNotifier{err: fmt.Errorf("smtp down")},
		hist,
	)

	w := testWatch()
	w.NegativeThreshold = intPtr(5)

	summary := r.Run(context.Background(), w)
	if !summary.OK || !summary.Triggered {
		t.Fatalf("notify failure should not fail the run: %+v", summary)
	}
	if len(hist.runs) != 1 || hist.runs[0].Status != model.HistoryStatusCompleted {
		t.Fatalf("run not recorded as completed: %+v", hist.runs)
	}
}

func TestRunner_NegativeReasonFirst(t *testing.T) {
	notif := &stubNotifier{}
	r := NewRunner(
		map[string]crawler.Crawler{"xhs": &stubCrawler{records: crawlRecords(5)}},
		&stubAnalyzer{items: sentiments(6, 7, 0, 0)},
		notif, nil,
	)

	w := testWatch()
	w.PositiveThreshold = intPtr(5)
	w.NegativeThreshold = intPtr(5)

	summary := r.Run(context.Background(), w)
	if len(summary.Reasons) != 2 {
		t.Fatalf("expected 2 reasons, got %v", summary.Reasons)
	}
	if want := "负面条数 7 ≥ 阈值 5"; summary.Reasons[0] != want {
		t.Fatalf("reasons[0] = %q, want %q", summary.Reasons[0], want)
	}
	if len(notif.bodies) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notif.bodies))
	}
}
