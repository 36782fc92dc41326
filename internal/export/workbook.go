// Package export turns catalog, kardex, journal and work-order data into
// workbooks: ordered sheets with a header row, rendered as CSV files.
package export

import (
	"archive/zip"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

type Sheet struct {
	Name   string     `json:"name"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

type Workbook struct {
	Name   string  `json:"name"`
	Sheets []Sheet `json:"sheets"`
}

func (wb *Workbook) Sheet(name string) (*Sheet, bool) {
	for i := range wb.Sheets {
		if wb.Sheets[i].Name == name {
			return &wb.Sheets[i], true
		}
	}
	return nil, false
}

// frame loads a sheet into an all-string dataframe.
func (s Sheet) frame() dataframe.DataFrame {
	records := make([][]string, 0, len(s.Rows)+1)
	records = append(records, s.Header)
	records = append(records, s.Rows...)
	return dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nil),
	)
}

// WriteCSV renders one sheet. A sheet with no rows still carries its header.
func WriteCSV(w io.Writer, s Sheet) error {
	if len(s.Rows) == 0 {
		_, err := io.WriteString(w, csvLine(s.Header))
		return err
	}
	df := s.frame()
	if df.Err != nil {
		return fmt.Errorf("sheet %s: %w", s.Name, df.Err)
	}
	return df.WriteCSV(w)
}

// WriteZip renders the workbook as a zip with one CSV per sheet.
func WriteZip(w io.Writer, wb *Workbook) error {
	zw := zip.NewWriter(w)
	used := make(map[string]int)
	for _, s := range wb.Sheets {
		name := fileName(s.Name)
		if n := used[name]; n > 0 {
			name = fmt.Sprintf("%s_%d", name, n+1)
		}
		used[fileName(s.Name)]++

		f, err := zw.Create(name + ".csv")
		if err != nil {
			return err
		}
		if err := WriteCSV(f, s); err != nil {
			return err
		}
	}
	return zw.Close()
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

func fileName(s string) string {
	s = strings.Trim(unsafeName.ReplaceAllString(s, "_"), "_")
	if s == "" {
		return "sheet"
	}
	return s
}

func csvLine(fields []string) string {
	out := make([]string, len(fields))
	for i, f := range fields {
		if strings.ContainsAny(f, ",\"\n") {
			f = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
		}
		out[i] = f
	}
	return strings.Join(out, ",") + "\n"
}
