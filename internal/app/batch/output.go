package batch

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/John-Robertt/fundcik/internal/domain"
)

// OutputHeader 是输出 CSV 的固定列。
var OutputHeader = []string{"name", "ticker", "cik", "oracle", "status", "candidates"}

// outputWriter 以追加方式写输出 CSV，每行写完立即 flush + fsync，保证中断后已写的行可用于续跑。
type outputWriter struct {
	f  *os.File
	cw *csv.Writer
}

// openOutput 打开（或创建）输出文件，并返回其中已有的数据行数（用于续跑）。
//
// 中断可能留下半行：文件末尾不是换行时，截断到最后一个换行之前，这一行会被重新处理。
func openOutput(path string) (*outputWriter, int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, 0, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, 0, err
	}

	done, err := prepareForAppend(f)
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("读取已有输出失败：%w", err)
	}

	w := &outputWriter{f: f, cw: csv.NewWriter(f)}
	if done < 0 {
		// 空文件：先写表头。
		if err := w.writeRecord(OutputHeader); err != nil {
			_ = f.Close()
			return nil, 0, err
		}
		done = 0
	}
	return w, done, nil
}

// prepareForAppend 统计已有数据行数并把写位置移到文件末尾；空文件返回 -1。
func prepareForAppend(f *os.File) (int, error) {
	b, err := io.ReadAll(f)
	if err != nil {
		return 0, err
	}
	if i := bytes.LastIndexByte(b, '\n'); len(b) > 0 && i != len(b)-1 {
		b = b[:i+1]
		if err := f.Truncate(int64(len(b))); err != nil {
			return 0, err
		}
	}
	if _, err := f.Seek(int64(len(b)), io.SeekStart); err != nil {
		return 0, err
	}
	if len(b) == 0 {
		return -1, nil
	}

	cr := csv.NewReader(bytes.NewReader(b))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	n := 0
	first := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
		if first {
			first = false
			if len(rec) > 0 && rec[0] == OutputHeader[0] {
				continue
			}
		}
		n++
	}
	return n, nil
}

func (w *outputWriter) Write(row domain.RowResult) error {
	return w.writeRecord([]string{
		row.Name,
		row.Ticker,
		row.CIK,
		strconv.FormatBool(row.ViaOracle),
		row.Status,
		joinCandidates(row.Candidates),
	})
}

func (w *outputWriter) writeRecord(rec []string) error {
	if err := w.cw.Write(rec); err != nil {
		return err
	}
	w.cw.Flush()
	if err := w.cw.Error(); err != nil {
		return err
	}
	return w.f.Sync()
}

func (w *outputWriter) Close() error { return w.f.Close() }

func joinCandidates(c []string) string {
	r := domain.Resolution{Candidates: c}
	return r.JoinedCandidates()
}

// appendLines 把若干行追加到文本文件（用于未匹配列表）。
func appendLines(path string, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
