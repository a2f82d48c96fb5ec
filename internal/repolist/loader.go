// Package repolist reads the list of repositories a run should visit.
package repolist

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/naka-gawa/github-osrcp/internal/domain"
)

// Load reads repository identifiers from the CSV file at path.
// The first field of every non-empty record is taken as an identifier; its syntax is not checked.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("failed to open repository list: %w", err)
	}
	defer f.Close()

	repos, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read repository list %s: %w", path, err)
	}
	return repos, nil
}

// Parse reads repository identifiers from r in record order. Duplicates are kept.
func Parse(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.Comment = '#'
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	repos := []string{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if isBlank(record) {
			continue
		}
		repos = append(repos, strings.TrimSpace(record[0]))
	}
	return repos, nil
}

func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
