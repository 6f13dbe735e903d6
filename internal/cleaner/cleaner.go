package cleaner

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"opinion-radar/internal/model"
)

// officialKeywords 作者名包含这些词时整条记录按推广噪声丢弃。
var officialKeywords = []string{"小助手", "官方", "客服", "团队", "从不胡说", "医生助理"}

// bannedPhrases 评论内容包含这些词时丢弃该条评论。
var bannedPhrases = []string{"私信", "联系我", "关注"}

// Options 控制清洗行为。
type Options struct {
	// CustomKeywords 同时并入作者过滤词与评论过滤词。
	CustomKeywords []string
	// MinLength 有效评论的最小字符数（按 rune 计）。
	MinLength int
	// Deduplicate 是否按 URL/内容做记录级去重。
	Deduplicate bool
}

// DefaultOptions 返回与线上一致的默认参数。
func DefaultOptions() Options {
	return Options{MinLength: 4, Deduplicate: true}
}

// Clean 过滤并去重抓取记录，返回可供分析的新切片，不修改输入。
// 每条记录依次经过：记录级去重、官方作者过滤、逐条评论的
// 规范化/去重/最小长度/违禁词过滤；评论全部被过滤的记录整体丢弃。
func Clean(records []model.Record, opts Options) []model.Record {
	if opts.MinLength <= 0 {
		opts.MinLength = 4
	}

	authorBlock := append(append([]string{}, officialKeywords...), opts.CustomKeywords...)
	commentBlock := append(append([]string{}, bannedPhrases...), opts.CustomKeywords...)

	seen := make(map[string]struct{})
	out := make([]model.Record, 0, len(records))

	for _, rec := range records {
		if opts.Deduplicate {
			key := rec.URL
			if key == "" {
				key = rec.Content
			}
			if key == "" {
				key = fmt.Sprintf("%v", rec)
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
		}

		if containsAny(rec.Author, authorBlock) {
			continue
		}

		seenComments := make(map[string]struct{})
		kept := make([]string, 0, len(rec.Comments))
		for _, c := range rec.Comments {
			n := Normalize(c)
			if n == "" {
				continue
			}
			if _, ok := seenComments[n]; ok {
				continue
			}
			seenComments[n] = struct{}{}
			if utf8.RuneCountInString(n) < opts.MinLength {
				continue
			}
			if containsAny(n, commentBlock) {
				continue
			}
			kept = append(kept, n)
		}

		if len(kept) == 0 {
			continue
		}

		cleaned := rec
		cleaned.Comments = kept
		cleaned.Content = Normalize(rec.Content)
		cleaned.Title = Normalize(rec.Title)
		out = append(out, cleaned)
	}

	return out
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if w == "" {
			continue
		}
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
