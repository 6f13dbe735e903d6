package model

// Record 表示一条抓取到的帖子/回答及其评论。
// PublishTime 保留平台展示的原文，Comments 在清洗后替换为有效评论子集。
type Record struct {
	Source      string   `json:"source"`
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	Content     string   `json:"content"`
	URL         string   `json:"url"`
	PublishTime string   `json:"publish_time"`
	Likes       string   `json:"likes"`
	Comments    []string `json:"comments"`
	AIAnalysis  string   `json:"ai_analysis,omitempty"`
}

// Sentiment 情感极性。
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// SentimentItem 网关每条分析结果的标准形态。
type SentimentItem struct {
	IsValid   bool      `json:"is_valid"`
	Keywords  []string  `json:"keywords"`
	Sentiment Sentiment `json:"sentiment"`
}

// DefaultSentimentItem 为无法解析的网关输出兜底。
func DefaultSentimentItem() SentimentItem {
	return SentimentItem{IsValid: false, Keywords: []string{}, Sentiment: SentimentNeutral}
}
