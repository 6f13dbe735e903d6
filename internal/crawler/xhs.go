package crawler

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"opinion-radar/internal/browser"
	"opinion-radar/internal/model"
)

const xhsSearchURL = "https://www.xiaohongshu.com/search_result?keyword=%s&source=web_search_result_notes"

// 笔记列表的候选选择器，按页面改版的兼容性从优到劣排列，取第一个非空结果。
var noteListSelectors = []string{
	".feeds-page .note-item",
	".note-item",
	"section[class*='note']",
}

// 详情页正文的候选选择器。
var noteContentSelectors = []string{
	"#detail-desc .note-text",
	"#detail-desc .desc",
	".note-scroller .desc",
	".note-content",
	".desc",
}

var publishTimeSelectors = []string{
	".date",
	".bottom-container .date",
}

var commentBlockSelectors = []string{
	".comment-item",
	".parent-comment",
	".comments-container .comment",
}

var detailCloseSelectors = []string{
	".close-circle",
	".close",
	"[class*='close']",
}

const maxCommentsPerNote = 10

// browserPage 抽象浏览器会话，便于测试注入脚本化的页面。
type browserPage interface {
	Navigate(ctx context.Context, url string) error
	Eval(ctx context.Context, expr string, out any) error
	Close() error
}

// noteCandidate 是列表页一条笔记卡片的轻量快照。
type noteCandidate struct {
	Index  int    `json:"index"`
	Href   string `json:"href"`
	DataID string `json:"dataId"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Likes  string `json:"likes"`
}

// XHSCrawler 通过受控浏览器抓取小红书搜索结果：
// 搜索 → 扫描列表 → 逐条打开详情提取正文与评论 → 关闭详情。
type XHSCrawler struct {
	newPage func(ctx context.Context) (browserPage, error)
	sleep   func(time.Duration)
	randInt func(int) int
	log     *logrus.Entry
}

// NewXHSCrawler 创建基于 DevTools 会话的小红书抓取器。
func NewXHSCrawler(cfg browser.Config) *XHSCrawler {
	return &XHSCrawler{
		newPage: func(ctx context.Context) (browserPage, error) {
			return browser.NewSession(ctx, cfg)
		},
		sleep:   time.Sleep,
		randInt: rand.Intn,
		log:     logrus.WithField("component", "xhs-crawler"),
	}
}

// Crawl 抓取关键词下最多 maxCount 篇笔记。浏览器初始化失败返回空结果。
func (c *XHSCrawler) Crawl(ctx context.Context, keyword string, maxCount int) ([]model.Record, error) {
	if strings.TrimSpace(keyword) == "" {
		return nil, fmt.Errorf("keyword required")
	}
	if maxCount <= 0 {
		maxCount = 5
	}

	pg, err := c.newPage(ctx)
	if err != nil {
		c.log.WithError(err).Error("browser session init failed")
		return []model.Record{}, nil
	}
	defer func() { _ = pg.Close() }()

	if err := pg.Navigate(ctx, fmt.Sprintf(xhsSearchURL, url.QueryEscape(keyword))); err != nil {
		c.log.WithError(err).Error("open search page failed")
		return []model.Record{}, nil
	}
	c.sleep(3 * time.Second)

	processed := make(map[string]struct{})
	results := make([]model.Record, 0, maxCount)
	scrolls := 0
	// 每轮滚动大约加载 5-10 篇，目标越多给的滚动预算越大。
	maxScroll := maxCount/5 + 10
	if maxScroll < 20 {
		maxScroll = 20
	}

	for len(results) < maxCount && scrolls < maxScroll {
		if ctx.Err() != nil {
			break
		}

		cands, selector := c.scanList(ctx, pg)
		if len(cands) == 0 {
			c.log.Warn("note list empty, scrolling")
			c.scroll(ctx, pg, 500)
			scrolls++
			c.sleep(time.Second)
			continue
		}

		foundNew := false
		for _, cand := range cands {
			if len(results) >= maxCount {
				break
			}

			id := c.noteIdentity(cand, scrolls)
			if _, ok := processed[id]; ok {
				continue
			}
			processed[id] = struct{}{}
			foundNew = true

			rec, err := c.extractDetail(ctx, pg, selector, cand)
			if err != nil {
				c.log.WithError(err).Warnf("extract note %s failed", id)
				c.closeDetail(ctx, pg)
			} else {
				results = append(results, rec)
				c.log.Infof("progress %d/%d", len(results), maxCount)
			}

			// 条目间随机延时，降低操作的规律性。
			c.sleep(c.jitter(500, 1000))
			break // 处理完一条就重新扫描列表，避免点击失效的旧元素
		}

		if !foundNew {
			c.scroll(ctx, pg, 600)
			scrolls++
			c.sleep(c.jitter(1000, 1500))
		}
	}

	c.log.Infof("crawl done: %d notes", len(results))
	return results, nil
}

// scanList 依次尝试各列表选择器，返回第一个非空候选集及命中的选择器。
func (c *XHSCrawler) scanList(ctx context.Context, pg browserPage) ([]noteCandidate, string) {
	for _, sel := range noteListSelectors {
		var cands []noteCandidate
		if err := pg.Eval(ctx, listScanScript(sel), &cands); err != nil {
			continue
		}
		if len(cands) > 0 {
			return cands, sel
		}
	}
	return nil, ""
}

// noteIdentity 计算去重标识：详情链接中的笔记 ID 优先，
// 退而取 DOM 属性，再退而合成一个带滚动轮次与随机后缀的标识。
func (c *XHSCrawler) noteIdentity(cand noteCandidate, scrolls int) string {
	if idx := strings.Index(cand.Href, "/explore/"); idx >= 0 {
		id := cand.Href[idx+len("/explore/"):]
		if q := strings.IndexByte(id, '?'); q >= 0 {
			id = id[:q]
		}
		if id != "" {
			return id
		}
	}
	if cand.DataID != "" {
		return cand.DataID
	}
	return fmt.Sprintf("note_%d_%d", scrolls, 1000+c.randInt(9000))
}

func (c *XHSCrawler) extractDetail(ctx context.Context, pg browserPage, selector string, cand noteCandidate) (model.Record, error) {
	var clicked bool
	if err := pg.Eval(ctx, clickScript(selector, cand.Index), &clicked); err != nil {
		return model.Record{}, fmt.Errorf("click note: %w", err)
	}
	if !clicked {
		return model.Record{}, fmt.Errorf("note element %d out of range", cand.Index)
	}
	c.sleep(2500 * time.Millisecond)

	var noteURL string
	_ = pg.Eval(ctx, "location.href", &noteURL)

	content := c.firstText(ctx, pg, noteContentSelectors, 3)
	publishTime := c.firstText(ctx, pg, publishTimeSelectors, 0)

	// 滚动触发评论懒加载。
	for i := 0; i < 3; i++ {
		c.sleep(c.jitter(200, 400))
		c.scroll(ctx, pg, 300)
	}
	comments := c.extractComments(ctx, pg)

	c.closeDetail(ctx, pg)

	title := cand.Title
	if title == "" {
		title = "无标题"
	}
	author := cand.Author
	if author == "" {
		author = "未知作者"
	}
	likes := cand.Likes
	if likes == "" {
		likes = "0"
	}

	return model.Record{
		Source:      "小红书",
		Title:       title,
		Author:      author,
		Content:     content,
		URL:         noteURL,
		PublishTime: publishTime,
		Likes:       likes,
		Comments:    comments,
	}, nil
}

// firstText 按顺序尝试选择器，返回第一个长度超过 minLen 的文本。
func (c *XHSCrawler) firstText(ctx context.Context, pg browserPage, selectors []string, minLen int) string {
	for _, sel := range selectors {
		var text string
		if err := pg.Eval(ctx, innerTextScript(sel), &text); err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if utf8.RuneCountInString(text) > minLen {
			return text
		}
	}
	return ""
}

// extractComments 取评论块文本：首行是作者/元信息，其余行是评论正文。
func (c *XHSCrawler) extractComments(ctx context.Context, pg browserPage) []string {
	for _, sel := range commentBlockSelectors {
		var blocks []string
		if err := pg.Eval(ctx, innerTextListScript(sel), &blocks); err != nil {
			continue
		}
		if len(blocks) == 0 {
			continue
		}
		if len(blocks) > maxCommentsPerNote {
			blocks = blocks[:maxCommentsPerNote]
		}

		comments := make([]string, 0, len(blocks))
		seen := make(map[string]struct{})
		for _, block := range blocks {
			block = strings.TrimSpace(block)
			if utf8.RuneCountInString(block) <= 2 {
				continue
			}
			lines := strings.Split(block, "\n")
			content := block
			if len(lines) >= 2 {
				content = strings.TrimSpace(strings.Join(lines[1:], "\n"))
			}
			if content == "" {
				continue
			}
			if _, ok := seen[content]; ok {
				continue
			}
			seen[content] = struct{}{}
			comments = append(comments, content)
		}
		if len(comments) > 0 {
			return comments
		}
	}
	return nil
}

// closeDetail 依次尝试关闭按钮、ESC 键、遮罩层点击，保证列表页可继续使用。
func (c *XHSCrawler) closeDetail(ctx context.Context, pg browserPage) {
	for _, sel := range detailCloseSelectors {
		var clicked bool
		if err := pg.Eval(ctx, clickScript(sel, 0), &clicked); err != nil {
			continue
		}
		if clicked {
			c.sleep(500 * time.Millisecond)
			return
		}
	}

	_ = pg.Eval(ctx, escapeKeyScript, nil)
	c.sleep(500 * time.Millisecond)

	var clicked bool
	if err := pg.Eval(ctx, clickScript(".mask", 0), &clicked); err == nil && clicked {
		c.sleep(500 * time.Millisecond)
	}
}

func (c *XHSCrawler) scroll(ctx context.Context, pg browserPage, px int) {
	_ = pg.Eval(ctx, fmt.Sprintf("window.scrollBy(0, %d)", px), nil)
}

func (c *XHSCrawler) jitter(minMs, maxMs int) time.Duration {
	return time.Duration(minMs+c.randInt(maxMs-minMs+1)) * time.Millisecond
}

func listScanScript(selector string) string {
	return fmt.Sprintf(`(function(){
	var els = document.querySelectorAll(%q);
	var out = [];
	for (var i = 0; i < els.length; i++) {
		var el = els[i];
		var a = el.querySelector('a');
		var title = el.querySelector('.footer .title');
		var author = el.querySelector('.footer .author-wrapper .author');
		var like = el.querySelector('.footer .like-wrapper');
		out.push({
			index: i,
			href: a ? (a.getAttribute('href') || '') : '',
			dataId: el.getAttribute('data-id') || el.id || '',
			title: title && title.innerText ? title.innerText.trim() : '',
			author: author && author.innerText ? author.innerText.trim() : '',
			likes: like && like.innerText ? like.innerText.trim() : '0'
		});
	}
	return out;
})()`, selector)
}

func clickScript(selector string, index int) string {
	return fmt.Sprintf(`(function(){
	var els = document.querySelectorAll(%q);
	if (els.length <= %d) { return false; }
	var el = els[%d];
	el.scrollIntoView({block: 'center'});
	el.click();
	return true;
})()`, selector, index, index)
}

func innerTextScript(selector string) string {
	return fmt.Sprintf(`(function(){
	var el = document.querySelector(%q);
	return el && el.innerText ? el.innerText.trim() : '';
})()`, selector)
}

func innerTextListScript(selector string) string {
	return fmt.Sprintf(`(function(){
	var els = document.querySelectorAll(%q);
	var out = [];
	for (var i = 0; i < els.length; i++) {
		if (els[i].innerText) { out.push(els[i].innerText); }
	}
	return out;
})()`, selector)
}

const escapeKeyScript = `(function(){
	var opts = {key: 'Escape', keyCode: 27, bubbles: true};
	document.dispatchEvent(new KeyboardEvent('keydown', opts));
	document.dispatchEvent(new KeyboardEvent('keyup', opts));
	return true;
})()`
