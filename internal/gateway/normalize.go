package gateway

import (
	"encoding/json"
	"strings"

	"opinion-radar/internal/model"
)

// 防止字符串套字符串的恶性嵌套无限递归。
const maxDecodeDepth = 4

// 对象包装列表时可能使用的字段名。
var wrapperKeys = []string{"data", "items"}

// Normalize 把各批次的网关原始输出展开成扁平的 SentimentItem 序列。
// 兼容三种形态：列表、包一层 data/items 的对象、以及再编码成 JSON
// 字符串的前两者（可能多层）。解析不了的条目落到安全默认值，绝不报错。
func Normalize(batches []json.RawMessage) []model.SentimentItem {
	items := make([]model.SentimentItem, 0, len(batches))
	for _, raw := range batches {
		items = append(items, flatten(raw, 0)...)
	}
	return items
}

func flatten(raw json.RawMessage, depth int) []model.SentimentItem {
	if depth > maxDecodeDepth || len(raw) == 0 || string(raw) == "null" {
		return []model.SentimentItem{model.DefaultSentimentItem()}
	}

	// 列表：逐条转换。
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		items := make([]model.SentimentItem, 0, len(list))
		for _, el := range list {
			items = append(items, flatten(el, depth+1)...)
		}
		if len(items) == 0 {
			return nil
		}
		return items
	}

	// 字符串：解开一层再试。
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return []model.SentimentItem{model.DefaultSentimentItem()}
		}
		return flatten(json.RawMessage(trimmed), depth+1)
	}

	// 对象：优先找包装字段，否则当作单条结果。
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, key := range wrapperKeys {
			if inner, ok := obj[key]; ok {
				return flatten(inner, depth+1)
			}
		}
		return []model.SentimentItem{decodeItem(raw)}
	}

	return []model.SentimentItem{model.DefaultSentimentItem()}
}

// looseItem 容忍网关输出的字段类型漂移。
type looseItem struct {
	IsValid   any    `json:"is_valid"`
	Keywords  any    `json:"keywords"`
	Sentiment string `json:"sentiment"`
}

func decodeItem(raw json.RawMessage) model.SentimentItem {
	var li looseItem
	if err := json.Unmarshal(raw, &li); err != nil {
		return model.DefaultSentimentItem()
	}

	item := model.SentimentItem{
		IsValid:   asBool(li.IsValid),
		Keywords:  asStringList(li.Keywords),
		Sentiment: model.Sentiment(strings.TrimSpace(li.Sentiment)),
	}
	switch item.Sentiment {
	case model.SentimentPositive, model.SentimentNegative, model.SentimentNeutral:
	default:
		item.Sentiment = model.SentimentNeutral
	}
	return item
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(strings.TrimSpace(t), "true")
	case float64:
		return t != 0
	default:
		return false
	}
}

func asStringList(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(list))
	for _, el := range list {
		if s, ok := el.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
