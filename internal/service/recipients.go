package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mailcannon/mailcannon/internal/domain"
	"github.com/mailcannon/mailcannon/pkg/logger"
)

// CSVSource streams recipients from a CSV file. The header row must contain
// an `email` column; a `name` column is optional and every other column
// becomes a template variable. Invalid rows are skipped and counted, never
// fatal.
type CSVSource struct {
	file    *os.File
	reader  *csv.Reader
	headers []string
	logger  logger.Logger

	invalid int
	line    int
}

// NewCSVSource opens the file and reads its header row.
func NewCSVSource(path string, log logger.Logger) (*CSVSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recipients file: %w", err)
	}

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		file.Close()
		if err == io.EOF {
			return nil, fmt.Errorf("recipients file is empty")
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	hasEmail := false
	for i, h := range headers {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
		if headers[i] == "email" {
			hasEmail = true
		}
	}
	if !hasEmail {
		file.Close()
		return nil, fmt.Errorf("recipients file is missing an email column")
	}

	return &CSVSource{
		file:    file,
		reader:  reader,
		headers: headers,
		logger:  log,
		line:    1,
	}, nil
}

// Next returns the next valid recipient in file order. Rows with a missing or
// syntactically invalid address are skipped and counted.
func (s *CSVSource) Next(ctx context.Context) (*domain.Recipient, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := s.reader.Read()
		if err == io.EOF {
			return nil, domain.ErrEndOfRecipients
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
		s.line++

		recipient := s.buildRecipient(record)
		if err := recipient.Validate(); err != nil {
			s.invalid++
			s.logger.WithFields(map[string]interface{}{
				"line":  s.line,
				"error": err.Error(),
			}).Warn("Skipping invalid recipient row")
			continue
		}

		return recipient, nil
	}
}

func (s *CSVSource) buildRecipient(record []string) *domain.Recipient {
	recipient := &domain.Recipient{Vars: make(map[string]string)}

	for i, header := range s.headers {
		if i >= len(record) {
			break
		}
		value := strings.TrimSpace(record[i])
		switch header {
		case "email":
			recipient.Email = value
		case "name":
			recipient.Name = value
			recipient.Vars["name"] = value
		default:
			recipient.Vars[header] = value
		}
	}

	recipient.Vars["email"] = domain.NormalizeEmail(recipient.Email)

	return recipient
}

// InvalidCount reports how many rows were skipped so far.
func (s *CSVSource) InvalidCount() int {
	return s.invalid
}

// Close releases the underlying file.
func (s *CSVSource) Close() error {
	return s.file.Close()
}
