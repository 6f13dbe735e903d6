package crawler

import (
	"context"
	"fmt"

	"opinion-radar/internal/model"
)

// Service 把两个平台的爬虫收拢成一个入口，供手动抓取接口使用。
// 知乎支持请求级 Cookie 覆盖，小红书忽略 cookie 参数。
type Service struct {
	xhs   Crawler
	zhihu *ZhihuCrawler
}

// NewService 创建聚合服务。
func NewService(xhs Crawler, zhihu *ZhihuCrawler) *Service {
	return &Service{xhs: xhs, zhihu: zhihu}
}

// Crawl 按平台分发一次抓取。
func (s *Service) Crawl(ctx context.Context, platform, keyword string, maxCount int, cookie string) ([]model.Record, error) {
	switch platform {
	case PlatformXHS:
		return s.xhs.Crawl(ctx, keyword, maxCount)
	case PlatformZhihu:
		if cookie != "" {
			return s.zhihu.CrawlWith(ctx, keyword, maxCount, cookie, 0)
		}
		return s.zhihu.Crawl(ctx, keyword, maxCount)
	default:
		return nil, fmt.Errorf("unsupported platform %s", platform)
	}
}

// Crawlers 返回按平台索引的爬虫表，供定时任务复用。
func (s *Service) Crawlers() map[string]Crawler {
	return map[string]Crawler{
		PlatformXHS:   s.xhs,
		PlatformZhihu: s.zhihu,
	}
}
