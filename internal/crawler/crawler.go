package crawler

import (
	"context"

	"opinion-radar/internal/model"
)

// 平台标识。
const (
	PlatformXHS   = "xhs"
	PlatformZhihu = "zhihu"
)

// Crawler 关键词抓取统一接口。实现均为尽力而为：
// 单条数据的失败被吞掉并记录日志，整体失败返回空结果而非报错。
type Crawler interface {
	Crawl(ctx context.Context, keyword string, maxCount int) ([]model.Record, error)
}
