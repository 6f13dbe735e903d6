package gateway

import (
	"encoding/json"
	"reflect"
	"testing"

	"opinion-radar/internal/model"
)

func raws(ss ...string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(ss))
	for _, s := range ss {
		out = append(out, json.RawMessage(s))
	}
	return out
}

func TestNormalize_List(t *testing.T) {
	items := Normalize(raws(`[
		{"is_valid": true, "sentiment": "positive", "keywords": ["好吃"]},
		{"is_valid": false, "sentiment": "neutral", "keywords": []}
	]`))

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if !items[0].IsValid || items[0].Sentiment != model.SentimentPositive {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if !reflect.DeepEqual(items[0].Keywords, []string{"好吃"}) {
		t.Fatalf("unexpected keywords: %v", items[0].Keywords)
	}
}

func TestNormalize_WrappedObject(t *testing.T) {
	for _, key := range []string{"data", "items"} {
		items := Normalize(raws(`{"` + key + `": [{"is_valid": true, "sentiment": "negative", "keywords": []}]}`))
		if len(items) != 1 {
			t.Fatalf("key %s: expected 1 item, got %d", key, len(items))
		}
		if items[0].Sentiment != model.SentimentNegative {
			t.Fatalf("key %s: unexpected item: %+v", key, items[0])
		}
	}
}

// 网关常见的双重编码：对象包一个再编码成字符串的列表。
func TestNormalize_DoubleEncoded(t *testing.T) {
	items := Normalize(raws(`{"data": "[{\"is_valid\": true, \"sentiment\": \"negative\", \"keywords\": [\"a\"]}]"}`))

	if len(items) != 1 {
		t.Fatalf("expected exactly 1 item, got %d", len(items))
	}
	want := model.SentimentItem{IsValid: true, Keywords: []string{"a"}, Sentiment: model.SentimentNegative}
	if !reflect.DeepEqual(items[0], want) {
		t.Fatalf("item = %+v, want %+v", items[0], want)
	}
}

func TestNormalize_GarbageFallsBackToDefault(t *testing.T) {
	cases := map[string]string{
		"无效JSON":  `not json at all`,
		"null值":   `null`,
		"未知情感":    `{"is_valid": "yes", "sentiment": "angry"}`,
		"纯空白字符串":  `"   "`,
	}

	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			items := Normalize(raws(in))
			if len(items) != 1 {
				t.Fatalf("expected 1 fallback item, got %d", len(items))
			}
			it := items[0]
			if it.IsValid {
				t.Fatalf("garbage input produced valid item: %+v", it)
			}
			if it.Sentiment != model.SentimentNeutral {
				t.Fatalf("garbage input sentiment = %s, want neutral", it.Sentiment)
			}
			if it.Keywords == nil {
				t.Fatal("keywords should be empty slice, not nil")
			}
		})
	}
}

// 字符串套字符串超过解码深度上限时放弃解析，落到默认条目。
func TestNormalize_DecodeDepthLimit(t *testing.T) {
	payload := `[{"is_valid": true, "sentiment": "positive", "keywords": []}]`
	for i := 0; i < 5; i++ {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		payload = string(b)
	}

	items := Normalize([]json.RawMessage{json.RawMessage(payload)})
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].IsValid {
		t.Fatalf("deeply nested payload should not decode: %+v", items[0])
	}
}

func TestNormalize_LooseFieldTypes(t *testing.T) {
	items := Normalize(raws(`[{"is_valid": "True", "sentiment": " positive ", "keywords": ["ok", 3, ""]}]`))

	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	it := items[0]
	if !it.IsValid {
		t.Fatal("string \"True\" should coerce to true")
	}
	if it.Sentiment != model.SentimentPositive {
		t.Fatalf("sentiment = %s, want positive", it.Sentiment)
	}
	if !reflect.DeepEqual(it.Keywords, []string{"ok"}) {
		t.Fatalf("keywords = %v, want [ok]", it.Keywords)
	}
}

func TestNormalize_MultipleBatches(t *testing.T) {
	items := Normalize(raws(
		`[{"is_valid": true, "sentiment": "positive", "keywords": []}]`,
		`[{"is_valid": true, "sentiment": "negative", "keywords": []}]`,
	))

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Sentiment != model.SentimentPositive || items[1].Sentiment != model.SentimentNegative {
		t.Fatalf("batch order not preserved: %+v", items)
	}
}
