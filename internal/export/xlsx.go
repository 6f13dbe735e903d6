package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tealeg/xlsx"

	"opinion-radar/internal/model"
)

var headers = []string{"来源", "标题", "作者", "内容", "链接", "发布时间", "点赞", "评论"}

// WriteXLSX 把一批记录写成 xlsx 工作簿。
// 评论列把多条评论用换行拼接，方便在表格里直接浏览。
func WriteXLSX(w io.Writer, records []model.Record) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("舆情数据")
	if err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	headerRow := sheet.AddRow()
	for _, h := range headers {
		headerRow.AddCell().Value = h
	}

	for _, r := range records {
		row := sheet.AddRow()
		row.AddCell().Value = r.Source
		row.AddCell().Value = r.Title
		row.AddCell().Value = r.Author
		row.AddCell().Value = r.Content
		row.AddCell().Value = r.URL
		row.AddCell().Value = r.PublishTime
		row.AddCell().Value = r.Likes
		row.AddCell().Value = strings.Join(r.Comments, "\n")
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// FileName 生成导出文件名，关键字为空时用记录条数兜底。
func FileName(keyword string, count int) string {
	if keyword == "" {
		keyword = "records_" + strconv.Itoa(count)
	}
	return "opinion_" + keyword + ".xlsx"
}
