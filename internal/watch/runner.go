package watch

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"opinion-radar/internal/cleaner"
	"opinion-radar/internal/crawler"
	"opinion-radar/internal/model"
)

// Analyzer 抽象情感分析批处理。
type Analyzer interface {
	Analyze(ctx context.Context, records []model.Record) ([]model.SentimentItem, error)
}

// Notifier 抽象告警投递；投递失败不影响运行结果。
type Notifier interface {
	Notify(ctx context.Context, target model.NotifyTarget, subject, body string) error
}

// HistorySink 记录运行历史，可为 nil。
type HistorySink interface {
	RecordRun(ctx context.Context, h model.RunHistory) error
}

// Runner 负责一次订阅执行：抓取 → 清洗 → 分析 → 聚合 → 判定 → 通知。
type Runner struct {
	crawlers map[string]crawler.Crawler
	analyzer Analyzer
	notifier Notifier
	history  HistorySink
	log      *logrus.Entry
}

// NewRunner 创建 Runner；crawlers 以平台标识为键。
func NewRunner(crawlers map[string]crawler.Crawler, analyzer Analyzer, notifier Notifier, history HistorySink) *Runner {
	return &Runner{
		crawlers: crawlers,
		analyzer: analyzer,
		notifier: notifier,
		history:  history,
		log:      logrus.WithField("component", "watch-runner"),
	}
}

// Run 执行一次订阅并返回结构化摘要。除配置类错误外不返回失败：
// 无数据是正常结果，网关解析失败降级为无效条目。
func (r *Runner) Run(ctx context.Context, w model.Watch) model.RunSummary {
	cr, ok := r.crawlers[w.Platform]
	if !ok {
		return model.RunSummary{OK: false, Message: fmt.Sprintf("未知平台: %s", w.Platform)}
	}

	maxCount := w.MaxCount
	if maxCount <= 0 {
		maxCount = 50
	}

	raw, err := cr.Crawl(ctx, w.Keyword, maxCount)
	if err != nil {
		r.recordHistory(ctx, w, 0, model.HistoryStatusFailed, nil)
		return model.RunSummary{OK: false, Message: fmt.Sprintf("抓取失败: %v", err)}
	}

	cleaned := cleaner.Clean(raw, cleaner.DefaultOptions())
	if len(cleaned) == 0 {
		r.recordHistory(ctx, w, 0, model.HistoryStatusCompleted, nil)
		return model.RunSummary{OK: true, Triggered: false, Message: "本次无可用数据", Keyword: w.Keyword, Platform: w.Platform}
	}

	items, err := r.analyzer.Analyze(ctx, cleaned)
	if err != nil {
		r.recordHistory(ctx, w, len(cleaned), model.HistoryStatusFailed, nil)
		return model.RunSummary{OK: false, Message: fmt.Sprintf("分析失败: %v", err)}
	}

	total, valid, pos, neg := countSentiment(items)

	reasons := make([]string, 0, 2)
	if w.NegativeThreshold != nil && neg >= *w.NegativeThreshold {
		reasons = append(reasons, fmt.Sprintf("负面条数 %d ≥ 阈值 %d", neg, *w.NegativeThreshold))
	}
	if w.PositiveThreshold != nil && pos >= *w.PositiveThreshold {
		reasons = append(reasons, fmt.Sprintf("正面条数 %d ≥ 阈值 %d", pos, *w.PositiveThreshold))
	}
	triggered := len(reasons) > 0

	if triggered {
		subject := fmt.Sprintf("舆情告警：%s（%s）", w.Keyword, w.Platform)
		body := formatAlertBody(w, total, valid, pos, neg, reasons)
		if err := r.notifier.Notify(ctx, w.Notify, subject, body); err != nil {
			r.log.WithError(err).Warnf("notify failed for watch %s", w.ID)
		}
	}

	r.recordHistory(ctx, w, len(cleaned), model.HistoryStatusCompleted, datatypes.JSONMap{
		"total": total, "valid": valid, "positive": pos, "negative": neg, "triggered": triggered,
	})

	return model.RunSummary{
		OK:        true,
		Triggered: triggered,
		Keyword:   w.Keyword,
		Platform:  w.Platform,
		Total:     total,
		Valid:     valid,
		Positive:  pos,
		Negative:  neg,
		Reasons:   reasons,
	}
}

func (r *Runner) recordHistory(ctx context.Context, w model.Watch, count int, status string, detail datatypes.JSONMap) {
	if r.history == nil {
		return
	}
	h := model.RunHistory{
		UserID:      w.UserID,
		Keyword:     w.Keyword,
		Platform:    w.Platform,
		Trigger:     "watch",
		ResultCount: count,
		Status:      status,
		Detail:      detail,
	}
	if err := r.history.RecordRun(ctx, h); err != nil {
		r.log.WithError(err).Warn("record run history failed")
	}
}

// countSentiment 统计总数、有效数及有效条目中的正负面数。
func countSentiment(items []model.SentimentItem) (total, valid, pos, neg int) {
	total = len(items)
	for _, it := range items {
		if !it.IsValid {
			continue
		}
		valid++
		switch it.Sentiment {
		case model.SentimentPositive:
			pos++
		case model.SentimentNegative:
			neg++
		}
	}
	return total, valid, pos, neg
}

func formatAlertBody(w model.Watch, total, valid, pos, neg int, reasons []string) string {
	var b strings.Builder
	b.WriteString("【舆情监控告警】\n\n")
	b.WriteString(fmt.Sprintf("关键词：%s\n", w.Keyword))
	b.WriteString(fmt.Sprintf("平台：%s\n", w.Platform))
	b.WriteString(fmt.Sprintf("本次抓取：%d（上限）\n\n", w.MaxCount))
	b.WriteString("AI统计（有效数据 is_valid=true）：\n")
	b.WriteString(fmt.Sprintf("- 总分析条数：%d\n", total))
	b.WriteString(fmt.Sprintf("- 有效条数：%d\n", valid))
	b.WriteString(fmt.Sprintf("- 正面：%d\n", pos))
	b.WriteString(fmt.Sprintf("- 负面：%d\n\n", neg))
	b.WriteString("触发原因：\n- ")
	b.WriteString(strings.Join(reasons, "\n- "))
	b.WriteString("\n")
	return b.String()
}
