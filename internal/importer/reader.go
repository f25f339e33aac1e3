// Package importer turns exported bank and card statements into draft ledger
// records for review before they are committed.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrEmptyStatement = errors.New("statement has no header row")

// Row is one statement line keyed by column name. Line is the 1-based line in
// the source file, header included.
type Row struct {
	Line   int
	Fields map[string]string
}

// ReadCSV reads a comma-delimited statement with a header row. Short lines are
// padded with empty values and extra trailing fields are ignored.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // statements are ragged, columns are matched by name
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyStatement
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = NormalizeHeader(header[i])
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("read statement: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if blank(rec) {
			continue
		}
		fields := make(map[string]string, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			if i < len(rec) {
				fields[name] = strings.TrimSpace(rec[i])
			} else {
				fields[name] = ""
			}
		}
		rows = append(rows, Row{Line: line, Fields: fields})
	}
	return rows, nil
}

var accentFolder = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "ô", "o", "õ", "o",
	"ú", "u", "ç", "c",
)

// NormalizeHeader trims a column name, drops a UTF-8 BOM and surrounding
// quotes, lowercases it and folds Portuguese accents ("Descrição" -> "descricao").
func NormalizeHeader(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	s = strings.ToLower(strings.TrimSpace(s))
	return accentFolder.Replace(s)
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
