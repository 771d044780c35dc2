package llmexport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadLabels reads reference summaries from a CSV file with a header row
// containing participant_id and assistant columns. Extra columns are ignored.
func LoadLabels(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels: %w", err)
	}
	defer f.Close()
	return ReadLabels(f)
}

// ReadLabels is LoadLabels over a reader. Later rows override earlier ones.
func ReadLabels(r io.Reader) (map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read labels header: %w", err)
	}
	idCol, answerCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "participant_id", "pid":
			idCol = i
		case "assistant", "assistant_content", "summary":
			answerCol = i
		}
	}
	if idCol < 0 || answerCol < 0 {
		return nil, fmt.Errorf("labels header must contain participant_id and assistant columns, got %v", header)
	}

	out := make(map[string]string)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read labels row: %w", err)
		}
		if idCol >= len(row) || answerCol >= len(row) {
			continue
		}
		id := strings.TrimSpace(row[idCol])
		if id == "" {
			continue
		}
		out[id] = row[answerCol]
	}
	return out, nil
}
