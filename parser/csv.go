package parser

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/poiesic/docuverse/core"
)

// CSVParser handles comma-separated value files. Each row is rendered as
// "header: value" pairs so column meaning survives embedding, and the
// whole file becomes one segment.
type CSVParser struct{}

// NewCSVParser creates a CSV parser.
func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

func (p *CSVParser) ParseFile(ctx context.Context, path string) ([]Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, core.Permanent(fmt.Errorf("failed to open csv file: %w", err))
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, core.Permanent(fmt.Errorf("failed to read csv header: %w", err))
	}

	var rows []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, core.Permanent(fmt.Errorf("failed to read csv row: %w", err))
		}

		pairs := make([]string, 0, len(record))
		for i, value := range record {
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			if i < len(header) && strings.TrimSpace(header[i]) != "" {
				pairs = append(pairs, strings.TrimSpace(header[i])+": "+value)
			} else {
				pairs = append(pairs, value)
			}
		}
		if len(pairs) > 0 {
			rows = append(rows, strings.Join(pairs, ", "))
		}
	}

	if len(rows) == 0 {
		return nil, nil
	}
	return []Segment{{Content: strings.Join(rows, "\n")}}, nil
}

func (p *CSVParser) FileType() core.FileType {
	return core.FileTypeCSV
}
