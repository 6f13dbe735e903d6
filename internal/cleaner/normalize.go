package cleaner

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// regions 末尾地区词的封闭列表（省份/地区/常见国家）。
const regions = "北京|上海|天津|重庆|河北|山西|辽宁|吉林|黑龙江|江苏|浙江|安徽|福建|江西|山东|河南|湖北|湖南|广东|海南|四川|贵州|云南|陕西|甘肃|青海|台湾|内蒙古|广西|西藏|宁夏|新疆|香港|澳门|美国|英国|日本|韩国|澳大利亚|加拿大|新加坡|马来西亚|泰国|越南|印度|法国|德国|意大利|西班牙|俄罗斯|巴西"

var (
	likeMarkRe     = regexp.MustCompile(`\s*赞\s*$`)
	replyMarkRe    = regexp.MustCompile(`\s*回复\s*$`)
	regionRe       = regexp.MustCompile(`\s*(` + regions + `)\s*$`)
	dateRe         = regexp.MustCompile(`\s*(\d{4}-)?\d{1,2}-\d{1,2}(\s*\d{1,2}:\d{2})?\s*$`)
	relativeDateRe = regexp.MustCompile(`\s*(昨天|今天|前天|刚刚|\d+分钟前|\d+小时前|\d+天前)\s*(\d{1,2}:\d{2})?\s*$`)
	newlineRe      = regexp.MustCompile(`\n+`)
	spaceRe        = regexp.MustCompile(`\s+`)
)

// Normalize 清理文本：去除 HTML 标签、末尾的点赞/回复标记、日期与地区残留，
// 并折叠换行与多余空白。空输入返回空串，畸形输入尽力清理后返回。
// 地区匹配在日期移除前后各执行一次，移除日期可能暴露其下方的地区词。
func Normalize(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	text = stripHTML(text)
	text = likeMarkRe.ReplaceAllString(text, "")
	text = replyMarkRe.ReplaceAllString(text, "")
	text = regionRe.ReplaceAllString(text, "")
	text = dateRe.ReplaceAllString(text, "")
	text = relativeDateRe.ReplaceAllString(text, "")
	text = regionRe.ReplaceAllString(text, "")
	text = newlineRe.ReplaceAllString(text, " ")
	text = spaceRe.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// stripHTML 提取文本节点内容，丢弃所有标签。
func stripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	var b strings.Builder
	tz := html.NewTokenizer(strings.NewReader(s))
	for {
		switch tz.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(tz.Text())
		}
	}
}
