package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

const testCookie = "z_c0=abcdef123456"

// stubTransport 按请求顺序回放响应，并记录每次请求。
type stubTransport struct {
	requests []*http.Request
	handler  func(call int, req *http.Request) *http.Response
}

func (s *stubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	call := len(s.requests)
	s.requests = append(s.requests, req)
	return s.handler(call, req), nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func searchPage(isEnd bool, entries ...string) string {
	page := fmt.Sprintf(`{"data": [%s], "paging": {"is_end": %v}}`, strings.Join(entries, ","), isEnd)
	return page
}

func answerEntry(id, title, excerpt, author string) string {
	obj := map[string]any{
		"id":           id,
		"url":          "https://www.zhihu.com/answer/" + id,
		"title":        title,
		"excerpt":      excerpt,
		"author":       map[string]string{"name": author},
		"created_time": 1700000000,
		"voteup_count": 12,
	}
	raw, _ := json.Marshal(map[string]any{"object": obj})
	return string(raw)
}

func newTestZhihuCrawler(stub *stubTransport) *ZhihuCrawler {
	c := NewZhihuCrawler(ZhihuConfig{}, &http.Client{Transport: stub})
	c.sleep = func(time.Duration) {}
	return c
}

func TestZhihuCrawler_CookieRequired(t *testing.T) {
	stub := &stubTransport{handler: func(int, *http.Request) *http.Response {
		t.Fatal("no request expected without cookie")
		return nil
	}}
	c := newTestZhihuCrawler(stub)

	got, err := c.CrawlWith(context.Background(), "奶茶", 10, "short", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
}

func TestZhihuCrawler_MaxCountStopsCrawl(t *testing.T) {
	stub := &stubTransport{handler: func(call int, _ *http.Request) *http.Response {
		entries := make([]string, 0, 3)
		for i := 0; i < 3; i++ {
			id := fmt.Sprintf("%d", call*10+i)
			entries = append(entries, answerEntry(id, "标题"+id, "内容"+id, "用户"+id))
		}
		return jsonResponse(http.StatusOK, searchPage(false, entries...))
	}}
	c := newTestZhihuCrawler(stub)

	got, err := c.CrawlWith(context.Background(), "奶茶", 5, testCookie, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected exactly 5 records, got %d", len(got))
	}
	// 5 条在第二页就凑齐，不应再翻第三页。
	if len(stub.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(stub.requests))
	}
	if got[0].Source != "知乎" || got[0].Author != "用户0" {
		t.Fatalf("unexpected first record: %+v", got[0])
	}
}

func TestZhihuCrawler_URLDeduplicationAcrossStrategies(t *testing.T) {
	// 所有策略都返回同样两条，is_end 直接结束分页。
	stub := &stubTransport{handler: func(int, *http.Request) *http.Response {
		return jsonResponse(http.StatusOK, searchPage(true,
			answerEntry("1", "第一条的标题写得比较长一些", "内容A", "张三"),
			answerEntry("2", "第二条的标题也不一样", "内容B", "李四"),
		))
	}}
	c := newTestZhihuCrawler(stub)

	got, err := c.CrawlWith(context.Background(), "奶茶", 50, testCookie, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 unique records, got %d", len(got))
	}
	// 每个策略一页，全部轮换完毕。
	if len(stub.requests) != len(searchStrategies) {
		t.Fatalf("expected %d requests, got %d", len(searchStrategies), len(stub.requests))
	}
}

func TestZhihuCrawler_TitleDeduplication(t *testing.T) {
	stub := &stubTransport{handler: func(int, *http.Request) *http.Response {
		return jsonResponse(http.StatusOK, searchPage(true,
			answerEntry("1", "同一个问题的标题", "第一个回答", "张三"),
			answerEntry("2", "同一个问题的标题", "第二个回答", "李四"),
		))
	}}
	c := newTestZhihuCrawler(stub)

	got, err := c.CrawlWith(context.Background(), "奶茶", 50, testCookie, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected title dedup to keep 1 record, got %d", len(got))
	}
	if got[0].Content != "第一个回答" {
		t.Fatalf("expected first occurrence kept, got %+v", got[0])
	}
}

func TestZhihuCrawler_EmptyPagesEndStrategy(t *testing.T) {
	stub := &stubTransport{handler: func(int, *http.Request) *http.Response {
		return jsonResponse(http.StatusOK, searchPage(false))
	}}
	c := newTestZhihuCrawler(stub)

	got, err := c.CrawlWith(context.Background(), "奶茶", 10, testCookie, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no records, got %d", len(got))
	}
	// 每个策略连续两页空数据后放弃。
	want := len(searchStrategies) * zhihuMaxEmptyPages
	if len(stub.requests) != want {
		t.Fatalf("expected %d requests, got %d", want, len(stub.requests))
	}
}

func TestZhihuCrawler_RateLimitBackoff(t *testing.T) {
	stub := &stubTransport{handler: func(call int, _ *http.Request) *http.Response {
		if call == 0 {
			return jsonResponse(http.StatusForbidden, `{}`)
		}
		return jsonResponse(http.StatusOK, searchPage(true,
			answerEntry("1", "限流后重试成功的标题", "内容", "张三"),
		))
	}}
	c := newTestZhihuCrawler(stub)

	got, err := c.CrawlWith(context.Background(), "奶茶", 1, testCookie, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record after retry, got %d", len(got))
	}
}

func TestZhihuCrawler_SendsSessionHeaders(t *testing.T) {
	stub := &stubTransport{handler: func(int, *http.Request) *http.Response {
		return jsonResponse(http.StatusOK, searchPage(true,
			answerEntry("1", "校验请求头的标题", "内容", "张三"),
		))
	}}
	c := newTestZhihuCrawler(stub)

	if _, err := c.CrawlWith(context.Background(), "奶茶", 1, "Cookie: "+testCookie, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := stub.requests[0]
	if req.Header.Get("Cookie") != testCookie {
		t.Fatalf("cookie prefix not stripped: %q", req.Header.Get("Cookie"))
	}
	if req.Header.Get("User-Agent") == "" {
		t.Fatal("user agent missing")
	}
	if q := req.URL.Query(); q.Get("q") != "奶茶" || q.Get("limit") != "20" {
		t.Fatalf("unexpected query: %s", req.URL.RawQuery)
	}
}

func TestNormalizeCookie(t *testing.T) {
	cases := map[string]string{
		"  z_c0=v  ":      "z_c0=v",
		"Cookie: z_c0=v":  "z_c0=v",
		"cookie=z_c0=v":   "z_c0=v",
		"z_c0=v":          "z_c0=v",
	}
	for in, want := range cases {
		if got := normalizeCookie(in); got != want {
			t.Fatalf("normalizeCookie(%q) = %q, want %q", in, got, want)
		}
	}
}
