package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/north-cloud/leakscan/internal/domain"
)

// CSV layouts are semicolon-delimited. Parsed credentials carry their line
// number and pattern id so exports can be correlated back to raw input.
var (
	parsedCSVHeader   = []string{"URL", "Username", "Password", "Line_Number", "Pattern_ID"}
	unparsedCSVHeader = []string{"Line_Number", "Raw_Credential"}
)

// WriteCSV writes the session's parsed credentials as semicolon-delimited
// CSV with the standard header.
func (s *Session) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(parsedCSVHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for i := range s.parsed {
		c := &s.parsed[i]
		record := []string{
			c.URL,
			c.Username,
			c.Password,
			strconv.Itoa(c.LineNum),
			strconv.Itoa(c.PatternID),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteUnparsedCSV writes the lines no pattern accepted.
func (s *Session) WriteUnparsedCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(unparsedCSVHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, u := range s.unparsed {
		if err := cw.Write([]string{strconv.Itoa(u.LineNum), u.Raw}); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads back a parsed-credentials export, preserving order.
func ReadCSV(r io.Reader) ([]domain.ParsedCredential, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = len(parsedCSVHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	if len(header) == 0 || header[0] != parsedCSVHeader[0] {
		return nil, fmt.Errorf("unexpected csv header: %v", header)
	}

	var creds []domain.ParsedCredential
	for {
		record, readErr := cr.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", readErr)
		}

		lineNum, convErr := strconv.Atoi(record[3])
		if convErr != nil {
			return nil, fmt.Errorf("invalid line number %q: %w", record[3], convErr)
		}
		patternID, convErr := strconv.Atoi(record[4])
		if convErr != nil {
			return nil, fmt.Errorf("invalid pattern id %q: %w", record[4], convErr)
		}

		creds = append(creds, domain.ParsedCredential{
			URL:       record[0],
			Username:  record[1],
			Password:  record[2],
			LineNum:   lineNum,
			PatternID: patternID,
		})
	}
	return creds, nil
}
