package services

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/codelieche/analytics/pkg/core"
	"github.com/xuri/excelize/v2"
)

const reportSheetName = "Report"

var reportHTMLTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"cell": formatCell,
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{ .Title }}</title>
<style>
body { font-family: sans-serif; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 4px 8px; }
th { background: #e0e0e0; }
</style>
</head>
<body>
<h1>{{ .Title }}</h1>
<p>{{ .Type }} · {{ .GeneratedAt.Format "2006-01-02 15:04:05" }}</p>
{{- if .Summary }}
<ul>
{{- range $key, $value := .Summary }}
<li>{{ $key }}: {{ cell $value }}</li>
{{- end }}
</ul>
{{- end }}
<table>
<tr>{{ range .Columns }}<th>{{ . }}</th>{{ end }}</tr>
{{- range .Rows }}
<tr>{{ range . }}<td>{{ cell . }}</td>{{ end }}</tr>
{{- end }}
</table>
</body>
</html>
`))

// formatCell 单元格的文本形式，浮点数保留4位小数
func formatCell(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

// NewExporter 创建报表导出器
func NewExporter() core.Exporter {
	return &Exporter{}
}

// Exporter 把报表导出为json/csv/excel/html
type Exporter struct{}

// Export 导出为指定格式
func (e *Exporter) Export(report *core.Report, format core.ExportFormat) (*core.Export, error) {
	var (
		content     []byte
		contentType string
		ext         string
		err         error
	)

	switch format {
	case core.ExportJSON:
		content, err = json.MarshalIndent(report, "", "  ")
		contentType, ext = "application/json", "json"
	case core.ExportCSV:
		content, err = e.csv(report)
		contentType, ext = "text/csv", "csv"
	case core.ExportExcel:
		content, err = e.excel(report)
		contentType, ext = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx"
	case core.ExportHTML:
		content, err = e.html(report)
		contentType, ext = "text/html; charset=utf-8", "html"
	default:
		return nil, fmt.Errorf("%w: 不支持的导出格式 %q", core.ErrBadRequest, format)
	}
	if err != nil {
		return nil, fmt.Errorf("导出%s失败: %w", format, err)
	}

	return &core.Export{
		Format:      format,
		ContentType: contentType,
		Filename:    fmt.Sprintf("%s.%s", report.Type, ext),
		Content:     content,
	}, nil
}

func (e *Exporter) csv(report *core.Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(report.Columns); err != nil {
		return nil, err
	}
	for _, row := range report.Rows {
		record := make([]string, len(row))
		for i, value := range row {
			record[i] = formatCell(value)
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Exporter) excel(report *core.Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// 默认的Sheet1改名
	if err := f.SetSheetName("Sheet1", reportSheetName); err != nil {
		return nil, err
	}

	// 列名加粗 + 背景色
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("创建样式失败: %w", err)
	}

	for i, col := range report.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(reportSheetName, cell, col); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(reportSheetName, cell, cell, headerStyle); err != nil {
			return nil, err
		}
	}

	for rowIdx, row := range report.Rows {
		for colIdx, value := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if value == nil {
				value = ""
			}
			if err := f.SetCellValue(reportSheetName, cell, value); err != nil {
				return nil, err
			}
		}
	}

	for i := range report.Columns {
		colName, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(reportSheetName, colName, colName, 18)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *Exporter) html(report *core.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := reportHTMLTemplate.Execute(&buf, report); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
