package contact

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	coreconfig "github.com/macmilm-mfc/csv-contact-manager-agent/core/config"
)

// FormatError marks a structurally unusable upload: unreadable CSV, missing
// header, or required columns absent. Surfaced verbatim to the user.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string { return "csv format: " + e.Reason }

// Code identifies the error class in handler summaries.
func (e *FormatError) Code() string { return "FORMAT_ERROR" }

// IsFormatError reports whether err is a FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// ParseResult carries the reviewable records plus aggregate row accounting.
// Total always equals len(Records) + Skipped.
type ParseResult struct {
	Records []Record
	Skipped int
	Total   int
}

// Parser converts uploaded CSV bytes into ordered contact records using the
// configured logical-to-physical column mapping.
type Parser struct {
	cols coreconfig.CSVConfig
}

// NewParser builds a parser for the given column mapping.
func NewParser(cols coreconfig.CSVConfig) *Parser {
	return &Parser{cols: cols}
}

// Parse reads the full CSV, validating each data row. Rows missing a required
// field after trimming are counted as skipped, not failed. Output order equals
// input row order and no deduplication happens here.
func (p *Parser) Parse(raw []byte) (*ParseResult, error) {
	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &FormatError{Reason: "empty file, header row required"}
		}
		return nil, &FormatError{Reason: fmt.Sprintf("unreadable header: %v", err)}
	}

	idx := headerIndex(header)
	required := []struct {
		field string
		col   string
	}{
		{"name", p.cols.NameColumn},
		{"email", p.cols.EmailColumn},
		{"linkedin", p.cols.LinkedInColumn},
	}
	for _, req := range required {
		if _, ok := idx[req.col]; !ok {
			return nil, &FormatError{Reason: fmt.Sprintf("missing required column %q (%s)", req.col, req.field)}
		}
	}

	res := &ParseResult{}
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Structurally broken data row. Count it as skipped rather than
			// failing the whole upload.
			res.Total++
			res.Skipped++
			continue
		}

		res.Total++
		rec, ok := p.parseRow(row, idx)
		if !ok {
			res.Skipped++
			continue
		}
		res.Records = append(res.Records, rec)
	}

	return res, nil
}

func (p *Parser) parseRow(row []string, idx map[string]int) (Record, bool) {
	field := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	rec := Record{
		Name:        field(p.cols.NameColumn),
		Email:       field(p.cols.EmailColumn),
		LinkedInURL: CleanLinkedInURL(field(p.cols.LinkedInColumn)),
		FirstName:   field(p.cols.FirstNameColumn),
		LastName:    field(p.cols.LastNameColumn),
	}

	if rec.Name == "" || rec.Email == "" || rec.LinkedInURL == "" {
		return Record{}, false
	}
	if !ValidEmail(rec.Email) {
		return Record{}, false
	}
	if !ValidLinkedInURL(rec.LinkedInURL) {
		return Record{}, false
	}
	return rec, true
}

// headerIndex maps exact column names to their positions. Matching is
// case-sensitive; the first occurrence of a duplicated column wins.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, col := range header {
		name := strings.TrimSpace(col)
		if name == "" {
			continue
		}
		if _, exists := idx[name]; !exists {
			idx[name] = i
		}
	}
	return idx
}
