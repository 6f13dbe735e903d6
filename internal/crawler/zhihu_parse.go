package crawler

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// zhihuSearchResponse 对应 search_v3 的响应包络（精简字段）。
type zhihuSearchResponse struct {
	Data   []json.RawMessage `json:"data"`
	Paging struct {
		IsEnd bool `json:"is_end"`
	} `json:"paging"`
}

// zhihuItem 是一条搜索结果解析后的统一形态。
type zhihuItem struct {
	ID            string
	URL           string
	Title         string
	Content       string
	AuthorName    string
	PublishTime   string
	Likes         string
	CommentsCount string
}

type zhihuObject struct {
	ID            any             `json:"id"`
	ObjectID      any             `json:"objectId"`
	URL           string          `json:"url"`
	TargetURL     string          `json:"target_url"`
	ShareURL      string          `json:"share_url"`
	Title         string          `json:"title"`
	Question      struct{ Name string `json:"name"` } `json:"question"`
	Excerpt       string          `json:"excerpt"`
	Abstract      string          `json:"abstract"`
	Author        json.RawMessage `json:"author"`
	Member        json.RawMessage `json:"member"`
	CreatedTime   any             `json:"created_time"`
	PublishedTime any             `json:"published_time"`
	VoteupCount   any             `json:"voteup_count"`
	LikesCount    any             `json:"likes_count"`
	CommentCount  any             `json:"comment_count"`
	CommentsCount any             `json:"comments_count"`
}

type zhihuAuthor struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Member struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"member"`
}

// parseSearchData 解析一页搜索结果，单条解析失败跳过而非中止。
func parseSearchData(entries []json.RawMessage) []zhihuItem {
	items := make([]zhihuItem, 0, len(entries))
	for _, raw := range entries {
		it, ok := parseSearchEntry(raw)
		if !ok {
			continue
		}
		items = append(items, it)
	}
	return items
}

func parseSearchEntry(raw json.RawMessage) (zhihuItem, bool) {
	// 多数条目把正文包在 object 子字段里，少数直接平铺。
	var wrapper struct {
		Object json.RawMessage `json:"object"`
	}
	objRaw := raw
	if err := json.Unmarshal(raw, &wrapper); err == nil && len(wrapper.Object) > 0 && string(wrapper.Object) != "null" {
		objRaw = wrapper.Object
	}

	var o zhihuObject
	if err := json.Unmarshal(objRaw, &o); err != nil {
		return zhihuItem{}, false
	}

	id := asString(o.ID)
	if id == "" {
		id = asString(o.ObjectID)
	}

	itemURL := o.URL
	if itemURL == "" {
		itemURL = o.TargetURL
	}
	if itemURL == "" {
		itemURL = o.ShareURL
	}
	if itemURL == "" && id != "" {
		itemURL = "https://www.zhihu.com/question/" + id
	}

	title := o.Title
	if title == "" {
		title = o.Question.Name
	}
	title = stripEmphasis(title)

	excerpt := o.Excerpt
	if excerpt == "" {
		excerpt = o.Abstract
	}
	excerpt = stripEmphasis(excerpt)

	authorName := parseAuthorName(o.Author)
	if authorName == "" {
		authorName = parseAuthorName(o.Member)
	}

	publishTime := ""
	if ts := asUnix(o.CreatedTime); ts > 0 {
		publishTime = time.Unix(ts, 0).Format("2006-01-02 15:04:05")
	} else if o.PublishedTime != nil {
		publishTime = asString(o.PublishedTime)
	}

	likes := asString(o.VoteupCount)
	if likes == "" {
		likes = asString(o.LikesCount)
	}
	comments := asString(o.CommentCount)
	if comments == "" {
		comments = asString(o.CommentsCount)
	}

	if title == "" && excerpt == "" && itemURL == "" {
		return zhihuItem{}, false
	}

	return zhihuItem{
		ID:            id,
		URL:           fullZhihuURL(itemURL),
		Title:         title,
		Content:       excerpt,
		AuthorName:    authorName,
		PublishTime:   publishTime,
		Likes:         likes,
		CommentsCount: comments,
	}, true
}

func parseAuthorName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var a zhihuAuthor
	if err := json.Unmarshal(raw, &a); err != nil {
		return ""
	}
	if a.Name != "" {
		return a.Name
	}
	return a.Member.Name
}

func stripEmphasis(s string) string {
	s = strings.ReplaceAll(s, "<em>", "")
	return strings.ReplaceAll(s, "</em>", "")
}

func fullZhihuURL(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http") {
		return href
	}
	return "https://www.zhihu.com" + "/" + strings.TrimPrefix(href, "/")
}

// asString 把 id/计数等可能是字符串或数字的字段统一成字符串。
func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		if t == 0 {
			return ""
		}
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func asUnix(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0
		}
		return n
	case string:
		var n int64
		if _, err := fmt.Sscanf(t, "%d", &n); err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
