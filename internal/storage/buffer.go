package storage

import (
	"sync"
	"time"

	"opinion-radar/internal/model"
)

// CrawlInfo 记录某用户缓冲区的最近一次抓取概况。
type CrawlInfo struct {
	Keyword   string `json:"keyword"`
	Platform  string `json:"platform"`
	Count     int    `json:"count"`
	UpdatedAt int64  `json:"updated_at"`
}

// CrawlBuffer 按用户隔离的内存抓取缓冲区。
// 手动抓取的结果先落在这里，供查看与导出，清空前不会自动过期。
type CrawlBuffer struct {
	mu   sync.Mutex
	data map[string][]model.Record
	info map[string]*CrawlInfo
	now  func() time.Time
}

// NewCrawlBuffer 创建空缓冲区。
func NewCrawlBuffer() *CrawlBuffer {
	return &CrawlBuffer{
		data: make(map[string][]model.Record),
		info: make(map[string]*CrawlInfo),
		now:  time.Now,
	}
}

// Extend 追加一批记录并刷新概况。
func (b *CrawlBuffer) Extend(userID, keyword, platform string, records []model.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data[userID] = append(b.data[userID], records...)
	b.info[userID] = &CrawlInfo{
		Keyword:   keyword,
		Platform:  platform,
		Count:     len(b.data[userID]),
		UpdatedAt: b.now().Unix(),
	}
}

// Data 返回用户缓冲区数据的副本。
func (b *CrawlBuffer) Data(userID string) []model.Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	records := b.data[userID]
	out := make([]model.Record, len(records))
	copy(out, records)
	return out
}

// Info 返回用户缓冲区概况，没有数据时返回 nil。
func (b *CrawlBuffer) Info(userID string) *CrawlInfo {
	b.mu.Lock()
	defer b.mu.Unlock()

	info, ok := b.info[userID]
	if !ok {
		return nil
	}
	cp := *info
	return &cp
}

// Clear 清空用户缓冲区，返回清掉的记录数。
func (b *CrawlBuffer) Clear(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.data[userID])
	delete(b.data, userID)
	delete(b.info, userID)
	return n
}
