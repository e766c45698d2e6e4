package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/opencodebook/coder/internal/types"
)

// readResponses loads survey responses from a CSV file. column selects the
// free-text column by header name; idColumn optionally selects a stable ID
// column, otherwise each row gets a fresh UUID. Rows whose text is empty are
// skipped.
func readResponses(path, column, idColumn string) ([]types.Response, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	textIdx, idIdx := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case column:
			textIdx = i
		case idColumn:
			if idColumn != "" {
				idIdx = i
			}
		}
	}
	if textIdx < 0 {
		return nil, fmt.Errorf("column %q not found in header %v", column, header)
	}
	if idColumn != "" && idIdx < 0 {
		return nil, fmt.Errorf("id column %q not found in header %v", idColumn, header)
	}

	var responses []types.Response
	seen := make(map[string]bool)
	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if textIdx >= len(record) {
			continue
		}
		text := strings.TrimSpace(record[textIdx])
		if text == "" {
			continue
		}

		id := uuid.New().String()
		if idIdx >= 0 && idIdx < len(record) {
			id = strings.TrimSpace(record[idIdx])
			if id == "" {
				return nil, fmt.Errorf("line %d: empty value in id column", line)
			}
			if seen[id] {
				return nil, fmt.Errorf("line %d: duplicate id %q", line, id)
			}
			seen[id] = true
		}
		responses = append(responses, types.Response{ID: id, RawText: text})
	}
	if len(responses) == 0 {
		return nil, fmt.Errorf("no responses found in %s column %q", path, column)
	}
	return responses, nil
}
