package edgar

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/fundcik/internal/domain"
)

// 基金系列表的列：CIK / Series / Class(Contract) / Name / Ticker。
const seriesCols = 5

// ParseSeries 把基金系列检索页展平为记录列表。
//
// 页面结构是三层层级（公司 -> 系列 -> 份额类别），但在 HTML 里是平铺的 <tr>：
// - 首列（CIK）非空：新公司开始，同时清空当前系列
// - 第二列（Series）非空：新系列开始，第四列是系列名
// - 第三列（Class）非空且当前有 CIK：输出一条记录
// 从第一个含 "CIK" 单元格的表头行之后开始，跨页面上所有表格收集数据行。
//
// 必须是纯函数；HTML 畸形或找不到表头时返回空列表，不报错。
func ParseSeries(html []byte) []domain.SearchRecord {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return []domain.SearchRecord{}
	}

	var f seriesFold
	started := false
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := rowCells(tr)
		if isHeaderRow(cells) {
			// 表头可能在分页/分表时重复出现：只作为起点标记，永不当数据行。
			started = true
			return
		}
		if !started {
			return
		}
		f.step(padCells(cells, seriesCols))
	})
	return f.out()
}

// seriesFold 是按行折叠的累加器：携带“当前公司/当前系列”两层状态。
type seriesFold struct {
	cik        string
	company    string
	seriesID   string
	seriesName string

	records []domain.SearchRecord
}

func (f *seriesFold) step(c []string) {
	cik, seriesID, classID, name, ticker := c[0], c[1], c[2], c[3], c[4]

	if cik != "" {
		f.cik = domain.NormalizeCIK(cik)
		f.company = name
		if f.company == "" {
			f.company = firstNonEmpty(c[1:]...)
		}
		f.seriesID, f.seriesName = "", ""
	}
	if seriesID != "" {
		f.seriesID = seriesID
		f.seriesName = name
	}
	if classID == "" || f.cik == "" {
		return
	}

	f.records = append(f.records, domain.SearchRecord{
		CIK:          f.cik,
		SeriesID:     f.seriesID,
		ClassID:      classID,
		CompanyName:  f.company,
		SeriesName:   f.seriesName,
		FullFundName: fullFundName(f.company, f.seriesName, name),
		Ticker:       ticker,
	})
}

func (f *seriesFold) out() []domain.SearchRecord {
	if f.records == nil {
		return []domain.SearchRecord{}
	}
	return f.records
}

// fullFundName 合成完整基金名；系列名已包含在类别名中时不重复拼接。
func fullFundName(company, series, class string) string {
	if series == "" || strings.Contains(strings.ToLower(class), strings.ToLower(series)) {
		return joinNonEmpty(company, class)
	}
	return joinNonEmpty(company, series, class)
}

// ParseProspectus 解析 485 表格申报人列表：使用第一个表头含 "CIK" 列的表格，
// 每行按“表头 -> 单元格文本”建映射（单元格内有链接时优先取链接文本），只输出 CIK 与公司名。
func ParseProspectus(html []byte) []domain.SearchRecord {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return []domain.SearchRecord{}
	}

	out := []domain.SearchRecord{}
	doc.Find("table").EachWithBreak(func(_ int, tbl *goquery.Selection) bool {
		rows := ownRows(tbl)
		if rows.Length() == 0 {
			return true
		}
		labels := rowCells(rows.First())
		if !isHeaderRow(labels) {
			return true
		}

		rows.Slice(1, rows.Length()).Each(func(_ int, tr *goquery.Selection) {
			fields := make(map[string]string, len(labels))
			tr.ChildrenFiltered("td,th").Each(func(i int, td *goquery.Selection) {
				if i < len(labels) && labels[i] != "" {
					fields[labels[i]] = cellText(td, true)
				}
			})
			cik := fields["CIK"]
			if cik == "" {
				return
			}
			company := fields["Company"]
			if company == "" {
				company = firstOtherField(labels, fields)
			}
			out = append(out, domain.SearchRecord{CIK: domain.NormalizeCIK(cik), CompanyName: company})
		})
		// 只使用第一个匹配的表格。
		return false
	})
	return out
}

// ownRows 返回直接属于 tbl 的行（排除嵌套表格里的行）。
func ownRows(tbl *goquery.Selection) *goquery.Selection {
	return tbl.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Closest("table").IsSelection(tbl)
	})
}

func rowCells(tr *goquery.Selection) []string {
	var cells []string
	tr.ChildrenFiltered("td,th").Each(func(_ int, td *goquery.Selection) {
		cells = append(cells, cellText(td, false))
	})
	return cells
}

// cellText 返回单元格文本；preferLink=true 时优先返回第一个非空链接文本
// （EDGAR 常把规范名称渲染为链接，链接外还混有 SIC/州等杂项）。
func cellText(td *goquery.Selection, preferLink bool) string {
	if preferLink {
		if a := normSpace(td.Find("a").First().Text()); a != "" {
			return a
		}
	}
	return normSpace(td.Text())
}

func isHeaderRow(cells []string) bool {
	for _, c := range cells {
		if c == "CIK" {
			return true
		}
	}
	return false
}

func padCells(cells []string, n int) []string {
	out := make([]string, n)
	copy(out, cells)
	return out
}

func firstOtherField(labels []string, fields map[string]string) string {
	for _, l := range labels {
		if l == "" || l == "CIK" {
			continue
		}
		if v := fields[l]; v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }
