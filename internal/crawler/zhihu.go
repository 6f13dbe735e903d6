package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"opinion-radar/internal/model"
)

const zhihuSearchAPI = "https://www.zhihu.com/api/v4/search_v3"

// searchStrategy 是一组 (内容类型, 时间窗口, 排序) 查询参数。
// 单一查询形态的结果量被 API 限顶，轮换多个形态累积突破上限。
type searchStrategy struct {
	Type         string
	TimeInterval string
	Sort         string
}

var searchStrategies = []searchStrategy{
	{"general", "", ""},
	{"general", "", "upvoted_count"},
	{"general", "", "created_time"},
	{"answer", "", ""},
	{"answer", "", "upvoted_count"},
	{"answer", "", "created_time"},
	{"article", "", ""},
	{"article", "", "created_time"},
	{"content", "", ""},
	{"general", "one_month", ""},
	{"general", "three_months", ""},
	{"general", "six_months", ""},
	{"general", "one_year", ""},
	{"answer", "one_month", ""},
	{"answer", "three_months", ""},
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
}

const (
	zhihuPageLimit     = 20
	zhihuMaxRetries    = 3
	zhihuMaxEmptyPages = 2
	titleDedupRunes    = 50
	minCookieLength    = 10
)

// 请求节奏控制（毫秒区间），页间短、换策略长、出错最长。
var (
	pageSleepRange     = [2]int{2000, 4000}
	strategySleepRange = [2]int{3000, 6000}
	errorSleepRange    = [2]int{5000, 10000}
)

// ZhihuConfig 定义知乎抓取配置。Cookie 必须由调用方提供。
type ZhihuConfig struct {
	Cookie  string   `yaml:"cookie" json:"cookie"`
	Proxies []string `yaml:"proxies" json:"proxies"`
}

// ZhihuCrawler 走 search_v3 JSON API 抓取，依靠策略轮换与随机延时
// 控制在限流阈值之下。实例内维护一个代理池失败集合。
type ZhihuCrawler struct {
	cookie  string
	client  *http.Client
	proxies *proxyPool
	sleep   func(time.Duration)
	randInt func(int) int
	log     *logrus.Entry
}

// NewZhihuCrawler 创建知乎抓取器，client 为 nil 时按代理配置构建。
func NewZhihuCrawler(cfg ZhihuConfig, client *http.Client) *ZhihuCrawler {
	pool := newProxyPool(cfg.Proxies)
	if client == nil {
		client = &http.Client{
			Timeout:   20 * time.Second,
			Transport: &http.Transport{Proxy: pool.proxyFunc},
		}
	}
	return &ZhihuCrawler{
		cookie:  normalizeCookie(cfg.Cookie),
		client:  client,
		proxies: pool,
		sleep:   time.Sleep,
		randInt: rand.Intn,
		log:     logrus.WithField("component", "zhihu-crawler"),
	}
}

// Crawl 使用配置的 Cookie 从偏移 0 开始抓取。
func (c *ZhihuCrawler) Crawl(ctx context.Context, keyword string, maxCount int) ([]model.Record, error) {
	return c.CrawlWith(ctx, keyword, maxCount, c.cookie, 0)
}

// CrawlWith 支持调用方传入会话凭证与起始偏移。凭证缺失或过短时
// 立即返回空结果：该抓取器无法匿名工作。
func (c *ZhihuCrawler) CrawlWith(ctx context.Context, keyword string, maxCount int, cookie string, offset int) ([]model.Record, error) {
	if strings.TrimSpace(keyword) == "" {
		return nil, fmt.Errorf("keyword required")
	}
	if maxCount <= 0 {
		maxCount = 5
	}
	cookie = normalizeCookie(cookie)
	if len(cookie) < minCookieLength {
		c.log.Error("cookie missing or too short, zhihu crawl needs a session cookie")
		return []model.Record{}, nil
	}

	results := make([]model.Record, 0, maxCount)
	seenURLs := make(map[string]struct{})
	seenTitles := make(map[string]struct{})

	c.log.Infof("start crawl: keyword=%s target=%d strategies=%d", keyword, maxCount, len(searchStrategies))

	for si, strat := range searchStrategies {
		if len(results) >= maxCount || ctx.Err() != nil {
			break
		}
		c.log.Infof("strategy %d/%d: %s", si+1, len(searchStrategies), strat.describe())

		currentOffset := 0
		if si == 0 {
			currentOffset = offset
		}
		page := 1
		emptyPages := 0

		for len(results) < maxCount && emptyPages < zhihuMaxEmptyPages {
			if ctx.Err() != nil {
				break
			}

			pageURL := buildSearchURL(keyword, strat, currentOffset, zhihuPageLimit)
			resp := c.fetchJSON(ctx, pageURL, cookie)
			if resp == nil {
				c.log.Warnf("[%s] page %d fetch failed, abandoning strategy", strat.describe(), page)
				break
			}

			items := parseSearchData(resp.Data)
			if len(items) == 0 {
				emptyPages++
				if emptyPages >= zhihuMaxEmptyPages || resp.Paging.IsEnd {
					c.log.Infof("[%s] no more data", strat.describe())
					break
				}
				currentOffset += zhihuPageLimit
				page++
				continue
			}

			newItems := 0
			for _, it := range items {
				if len(results) >= maxCount {
					break
				}
				// URL 去重，外加截断标题作为第二重身份：同一内容可能挂在不同 URL 下。
				if it.URL != "" {
					if _, ok := seenURLs[it.URL]; ok {
						continue
					}
				}
				titleKey := truncateRunes(strings.TrimSpace(it.Title), titleDedupRunes)
				if titleKey != "" {
					if _, ok := seenTitles[titleKey]; ok {
						continue
					}
				}
				if it.URL != "" {
					seenURLs[it.URL] = struct{}{}
				}
				if titleKey != "" {
					seenTitles[titleKey] = struct{}{}
				}

				title := it.Title
				if title == "" {
					title = "无标题"
				}
				author := it.AuthorName
				if author == "" {
					author = "匿名用户"
				}
				var comments []string
				if it.Content != "" {
					comments = []string{it.Content}
				}
				results = append(results, model.Record{
					Source:      "知乎",
					Title:       title,
					Author:      author,
					Content:     it.Content,
					URL:         it.URL,
					PublishTime: it.PublishTime,
					Likes:       it.Likes,
					Comments:    comments,
				})
				newItems++
			}

			if newItems == 0 {
				emptyPages++
			} else {
				emptyPages = 0
			}
			c.log.Infof("[%s] page %d: fetched=%d new=%d cumulative=%d", strat.describe(), page, len(items), newItems, len(results))

			if resp.Paging.IsEnd {
				break
			}
			currentOffset += zhihuPageLimit
			page++

			if len(results) < maxCount {
				c.sleep(c.jitterMs(pageSleepRange))
			}
		}

		if len(results) < maxCount && si < len(searchStrategies)-1 {
			c.sleep(c.jitterMs(strategySleepRange))
		}
	}

	c.log.Infof("crawl done: %d unique records", len(results))
	return results, nil
}

// fetchJSON 拉取一页搜索结果，403/429 退避重试，重试耗尽返回 nil。
func (c *ZhihuCrawler) fetchJSON(ctx context.Context, pageURL, cookie string) *zhihuSearchResponse {
	for attempt := 1; attempt <= zhihuMaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			c.log.WithError(err).Warn("build request failed")
			return nil
		}
		c.setHeaders(req, cookie)

		resp, err := c.client.Do(req)
		if err != nil {
			c.proxies.markCurrentFailed()
			c.log.Warnf("request failed (attempt %d): %v", attempt, err)
			c.sleep(c.jitterMs(errorSleepRange))
			continue
		}

		switch resp.StatusCode {
		case http.StatusOK:
			var body zhihuSearchResponse
			err := json.NewDecoder(resp.Body).Decode(&body)
			_ = resp.Body.Close()
			if err != nil {
				c.log.Warnf("json decode failed: %v", err)
				return nil
			}
			return &body
		case http.StatusForbidden, http.StatusTooManyRequests:
			_ = resp.Body.Close()
			c.proxies.markCurrentFailed()
			c.log.Warnf("rate limited %d, backing off (attempt %d)", resp.StatusCode, attempt)
			c.sleep(c.jitterMs(errorSleepRange))
		default:
			_ = resp.Body.Close()
			c.log.Warnf("unexpected status %d (attempt %d)", resp.StatusCode, attempt)
			c.sleep(c.jitterMs(errorSleepRange))
		}
	}
	return nil
}

func (c *ZhihuCrawler) setHeaders(req *http.Request, cookie string) {
	req.Header.Set("User-Agent", userAgents[c.randInt(len(userAgents))])
	req.Header.Set("Referer", "https://www.zhihu.com/search")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	req.Header.Set("Origin", "https://www.zhihu.com")
	req.Header.Set("x-requested-with", "fetch")
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
}

func (c *ZhihuCrawler) jitterMs(r [2]int) time.Duration {
	return time.Duration(r[0]+c.randInt(r[1]-r[0]+1)) * time.Millisecond
}

func (s searchStrategy) describe() string {
	desc := s.Type
	if s.TimeInterval != "" {
		desc += "+" + s.TimeInterval
	}
	if s.Sort != "" {
		desc += "+" + s.Sort
	}
	return desc
}

func buildSearchURL(keyword string, strat searchStrategy, offset, limit int) string {
	q := url.Values{}
	q.Set("t", strat.Type)
	q.Set("q", keyword)
	q.Set("offset", fmt.Sprintf("%d", offset))
	q.Set("limit", fmt.Sprintf("%d", limit))
	if strat.TimeInterval != "" || strat.Sort != "" {
		q.Set("time_interval", strat.TimeInterval)
		q.Set("sort", strat.Sort)
	}
	return zhihuSearchAPI + "?" + q.Encode()
}

// normalizeCookie 去掉外围空白以及误带的 "cookie:"/"cookie=" 前缀。
func normalizeCookie(cookie string) string {
	cookie = strings.TrimSpace(cookie)
	lower := strings.ToLower(cookie)
	if strings.HasPrefix(lower, "cookie:") {
		cookie = strings.TrimSpace(cookie[len("cookie:"):])
	} else if strings.HasPrefix(lower, "cookie=") {
		cookie = strings.TrimSpace(cookie[len("cookie="):])
	}
	return cookie
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
