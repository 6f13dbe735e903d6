package gateway

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"opinion-radar/internal/model"
)

// Config 控制批量分析节奏。
type Config struct {
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	BatchDelay string `yaml:"batch_delay" json:"batch_delay"`
}

// Analyzer 把清洗后的记录分批送入情感分析工作流并归一输出。
// 每批一份 CSV，批间固定延时以避开网关限流；单批失败降级为
// 一条无效占位结果，不中断其余批次。
type Analyzer struct {
	client    WorkflowClient
	batchSize int
	delay     time.Duration
	sleep     func(time.Duration)
	log       *logrus.Entry
}

// NewAnalyzer 创建分析器，默认每批 50 条、批间 2 秒。
func NewAnalyzer(client WorkflowClient, cfg Config) *Analyzer {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}
	delay := 2 * time.Second
	if cfg.BatchDelay != "" {
		if d, err := time.ParseDuration(cfg.BatchDelay); err == nil && d >= 0 {
			delay = d
		}
	}
	return &Analyzer{
		client:    client,
		batchSize: batch,
		delay:     delay,
		sleep:     time.Sleep,
		log:       logrus.WithField("component", "gateway"),
	}
}

// Analyze 返回所有批次展开后的情感条目序列。
func (a *Analyzer) Analyze(ctx context.Context, records []model.Record) ([]model.SentimentItem, error) {
	if len(records) == 0 {
		return nil, nil
	}

	totalBatches := (len(records) + a.batchSize - 1) / a.batchSize
	a.log.Infof("analyzing %d records in %d batches of %d", len(records), totalBatches, a.batchSize)

	raws := make([]json.RawMessage, 0, totalBatches)
	for i := 0; i < totalBatches; i++ {
		if ctx.Err() != nil {
			break
		}
		start := i * a.batchSize
		end := start + a.batchSize
		if end > len(records) {
			end = len(records)
		}

		csvText := BuildCSV(records[start:end])
		raw, err := a.client.RunWorkflow(ctx, csvText)
		if err != nil {
			a.log.WithError(err).Warnf("batch %d/%d failed", i+1, totalBatches)
			// 占位一条解析不了的结果，归一化后变成安全默认条目。
			placeholder, _ := json.Marshal("analysis failed: " + err.Error())
			raws = append(raws, placeholder)
		} else {
			raws = append(raws, raw)
		}

		if i+1 < totalBatches {
			a.sleep(a.delay)
		}
	}

	return Normalize(raws), nil
}

// BuildCSV 生成网关约定的输入表：每条清洗后评论一行。
func BuildCSV(records []model.Record) string {
	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write([]string{"keyword", "url", "user", "comment_content"})
	for _, rec := range records {
		user := rec.Author
		if user == "" {
			user = "匿名"
		}
		comment := rec.Content
		if len(rec.Comments) > 0 {
			comment = rec.Comments[0]
		}
		_ = w.Write([]string{rec.Title, rec.URL, user, comment})
	}
	w.Flush()
	return b.String()
}
