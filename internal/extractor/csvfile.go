package extractor

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVExtractor handles CSV files. The header row plus batches of data rows
// become table-hinted nodes.
type CSVExtractor struct{}

const csvBatchSize = 20

func (p *CSVExtractor) Extract(_ context.Context, r io.Reader, _ string) (*Stream, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	l := newLayout()
	if len(records) == 0 {
		return l.stream(), nil
	}

	headers := records[0]
	dataRows := records[1:]

	for i := 0; i < len(dataRows); i += csvBatchSize {
		end := min(i+csvBatchSize, len(dataRows))

		var text strings.Builder
		text.WriteString(strings.Join(headers, " | "))
		for _, row := range dataRows[i:end] {
			text.WriteString("\n")
			text.WriteString(strings.Join(row, " | "))
		}
		l.breakParagraph()
		l.addTable(text.String())
	}
	return l.stream(), nil
}
