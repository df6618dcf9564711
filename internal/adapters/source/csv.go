package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/okian/epidash/internal/domain/model"
)

// ParseResult is a parsed table plus the number of rows dropped because
// their field count did not match the header.
type ParseResult struct {
	Table   *model.Table
	Skipped int
}

// ParseCSV reads a CSV document into a Table. Rows with the wrong number of
// fields, or that the reader cannot parse, are skipped and counted. A
// document without any data row is ErrSourceUnavailable.
func ParseCSV(name string, r io.Reader) (ParseResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ParseResult{}, fmt.Errorf("%w: %s: empty document", ErrSourceUnavailable, name)
		}
		return ParseResult{}, fmt.Errorf("%w: %s: header: %w", ErrSourceUnavailable, name, err)
	}

	var (
		rows    [][]string
		skipped int
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped++
				continue
			}
			return ParseResult{}, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, name, err)
		}
		if len(rec) != len(header) {
			skipped++
			continue
		}
		rows = append(rows, rec)
	}

	if len(rows) == 0 {
		return ParseResult{Skipped: skipped}, fmt.Errorf("%w: %s: no data rows", ErrSourceUnavailable, name)
	}
	return ParseResult{Table: model.NewTable(name, header, rows), Skipped: skipped}, nil
}
