package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// InputRow 是输入 CSV 的一条数据行。Line 从 1 开始，不含表头。
type InputRow struct {
	Line   int
	Name   string
	Ticker string // 原样保留；是否合法由 domain.ParseTicker 判定
}

var (
	nameHeaders   = []string{"name", "fund_name", "fund name"}
	tickerHeaders = []string{"ticker", "symbol"}
)

// ReadInput 读取 `name[,ticker]` 格式的 CSV。
//
// 首行任一单元格是已知列名（name/fund_name/ticker…）时视为表头，并按列名定位；
// 否则第一列是基金名、第二列（可选）是 ticker。
// 空行被跳过，不占行号；列数不一致不报错。
func ReadInput(path string) ([]InputRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseInput(f)
}

func parseInput(r io.Reader) ([]InputRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	nameCol, tickerCol := 0, 1
	var rows []InputRow
	first := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("解析输入 CSV 失败：%w", err)
		}
		if first {
			first = false
			rec[0] = strings.TrimPrefix(rec[0], "\ufeff")
			if n, t, ok := headerColumns(rec); ok {
				nameCol, tickerCol = n, t
				continue
			}
		}
		if blank(rec) {
			continue
		}
		rows = append(rows, InputRow{
			Line:   len(rows) + 1,
			Name:   strings.TrimSpace(cell(rec, nameCol)),
			Ticker: strings.TrimSpace(cell(rec, tickerCol)),
		})
	}
	return rows, nil
}

// headerColumns 识别表头行；ticker 列缺失时返回 -1。
func headerColumns(rec []string) (nameCol, tickerCol int, ok bool) {
	nameCol, tickerCol = -1, -1
	for i, c := range rec {
		c = strings.ToLower(strings.TrimSpace(c))
		switch {
		case nameCol < 0 && slices.Contains(nameHeaders, c):
			nameCol = i
		case tickerCol < 0 && slices.Contains(tickerHeaders, c):
			tickerCol = i
		}
	}
	if nameCol < 0 && tickerCol < 0 {
		return 0, 1, false
	}
	if nameCol < 0 {
		nameCol = 0
		if tickerCol == 0 {
			nameCol = 1
		}
	}
	return nameCol, tickerCol, true
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
