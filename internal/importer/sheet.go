// Package importer reads the warehouse sheets (catalog and opening stock)
// exported from the farm's spreadsheets.
package importer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
)

// RowError reports a rejected sheet row. Line counts the header as line 1.
type RowError struct {
	Line    int    `json:"line"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("line %d, %s: %s", e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

var ErrMissingColumn = errors.New("required column missing")

// header aliases seen in older sheets
var aliases = map[string]string{
	"CÓDIGO":             "CODIGO",
	"CODE":               "CODIGO",
	"PRODUCT":            "PRODUCTS",
	"PRODUCTO":           "PRODUCTS",
	"PRODUCTOS":          "PRODUCTS",
	"INGREDIENTE_ACTIVO": "ACTIVE_INGREDIENT",
	"UNIDAD":             "UM",
	"PROVEEDOR":          "SUPPLIER",
	"SUBGRUPO":           "SUBGROUP",
	"STOCK_MINIMO":       "MIN_STOCK",
	"STOCK_MÍNIMO":       "MIN_STOCK",
	"CANTIDAD":           "QUANTITY",
	"STOCK":              "QUANTITY",
	"PRECIO_UNITARIO":    "UNIT_PRICE",
	"PRECIO":             "UNIT_PRICE",
	"FECHA_VENCIMIENTO":  "EXPIRY_DATE",
	"VENCIMIENTO":        "EXPIRY_DATE",
}

func normalizeHeader(h string) string {
	h = strings.ToUpper(strings.TrimSpace(h))
	h = strings.NewReplacer(" ", "_", "-", "_", ".", "").Replace(h)
	if canon, ok := aliases[h]; ok {
		return canon
	}
	return h
}

// sheet is a loaded table with case-insensitive column lookup.
type sheet struct {
	df   dataframe.DataFrame
	cols map[string]string // normalized -> actual column name
}

// load decodes the upload (UTF-8 or Windows-1252), detects ';' or ','
// delimiters from the header line and keeps every cell as a string.
func load(r io.Reader) (*sheet, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read sheet: %w", err)
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(raw) {
		raw, err = io.ReadAll(charmap.Windows1252.NewDecoder().Reader(bytes.NewReader(raw)))
		if err != nil {
			return nil, fmt.Errorf("decode windows-1252 sheet: %w", err)
		}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("sheet is empty")
	}

	headerLine := raw
	if i := bytes.IndexByte(raw, '\n'); i >= 0 {
		headerLine = raw[:i]
	}
	delim := ','
	if bytes.Count(headerLine, []byte(";")) > bytes.Count(headerLine, []byte(",")) {
		delim = ';'
	}

	df := dataframe.ReadCSV(bytes.NewReader(raw),
		dataframe.WithDelimiter(delim),
		dataframe.WithLazyQuotes(true),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("parse sheet: %w", df.Err)
	}

	s := &sheet{df: df, cols: make(map[string]string)}
	for _, name := range df.Names() {
		key := normalizeHeader(name)
		if _, dup := s.cols[key]; !dup {
			s.cols[key] = name
		}
	}
	return s, nil
}

func (s *sheet) rows() int { return s.df.Nrow() }

func (s *sheet) has(col string) bool {
	_, ok := s.cols[col]
	return ok
}

func (s *sheet) require(cols ...string) error {
	for _, c := range cols {
		if !s.has(c) {
			return fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}
	return nil
}

// str returns the trimmed cell, or "" for absent columns and empty cells.
func (s *sheet) str(col string, row int) string {
	name, ok := s.cols[col]
	if !ok {
		return ""
	}
	el := s.df.Col(name).Elem(row)
	if el.IsNA() {
		return ""
	}
	v := strings.TrimSpace(el.String())
	if v == "NaN" {
		return ""
	}
	return v
}

// parseNumber accepts "1234.5", "1234,5", "1.234,50" and "1,234.50".
func parseNumber(v string) (decimal.Decimal, error) {
	v = strings.ReplaceAll(strings.TrimSpace(v), " ", "")
	dot, comma := strings.LastIndex(v, "."), strings.LastIndex(v, ",")
	switch {
	case dot >= 0 && comma >= 0 && comma > dot:
		v = strings.ReplaceAll(v, ".", "")
		v = strings.Replace(v, ",", ".", 1)
	case dot >= 0 && comma >= 0:
		v = strings.ReplaceAll(v, ",", "")
	case comma >= 0:
		v = strings.Replace(v, ",", ".", 1)
	}
	return decimal.NewFromString(v)
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "2/1/2006", "02-01-2006", "2006/01/02"}

func parseDate(v string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", v)
}
