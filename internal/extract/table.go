package extract

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// tableText renders rows as space-joined cells, one row per line. Empty
// cells and empty rows are dropped.
type tableText struct {
	sb strings.Builder
}

func (t *tableText) row(cells []string) {
	first := true
	for _, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if first {
			if t.sb.Len() > 0 {
				t.sb.WriteByte('\n')
			}
			first = false
		} else {
			t.sb.WriteByte(' ')
		}
		t.sb.WriteString(c)
	}
}

func (t *tableText) String() string { return t.sb.String() }

func readCSV(_ context.Context, path string) (string, error) {
	if empty, err := isEmptyFile(path); err != nil || empty {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var out tableText
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse csv: %w", err)
		}
		out.row(rec)
	}
	return out.String(), nil
}

func readXLSX(_ context.Context, path string) (string, error) {
	if empty, err := isEmptyFile(path); err != nil || empty {
		return "", err
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	var out tableText
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		for _, row := range rows {
			out.row(row)
		}
	}
	return out.String(), nil
}

func readXLS(_ context.Context, path string) (text string, err error) {
	if empty, err := isEmptyFile(path); err != nil || empty {
		return "", err
	}

	// The BIFF parser panics on some malformed workbooks.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parse xls: %v", r)
		}
	}()

	wb, closer, err := xls.OpenWithCloser(path, "utf-8")
	if err != nil {
		return "", fmt.Errorf("open xls: %w", err)
	}
	defer closer.Close()

	var out tableText
	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil {
			continue
		}
		for r := 0; r <= int(sheet.MaxRow); r++ {
			row := sheet.Row(r)
			if row == nil {
				continue
			}
			cells := make([]string, 0, row.LastCol()-row.FirstCol())
			for c := row.FirstCol(); c < row.LastCol(); c++ {
				cells = append(cells, row.Col(c))
			}
			out.row(cells)
		}
	}
	return out.String(), nil
}
