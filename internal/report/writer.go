// Package report writes the contributor table to disk.
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/naka-gawa/github-osrcp/internal/domain"
)

// Format is an output file format.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DefaultProfileBaseURL is prepended to a login to form its profile URL.
const DefaultProfileBaseURL = "https://github.com/"

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case FormatCSV, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format %q (must be csv, json or yaml)", name)
	}
}

// Row is one line of the report.
type Row struct {
	Username      string   `json:"username" yaml:"username"`
	ProfileURL    string   `json:"profile_url" yaml:"profile_url"`
	Email         string   `json:"email" yaml:"email"`
	Contributions []string `json:"contributions,omitempty" yaml:"contributions,omitempty"`
}

// Writer serializes contributors in one format.
type Writer struct {
	Format            Format
	ProfileBaseURL    string
	WithContributions bool
}

// NewWriter returns a CSV writer using the GitHub profile URL prefix.
func NewWriter() *Writer {
	return &Writer{
		Format:         FormatCSV,
		ProfileBaseURL: DefaultProfileBaseURL,
	}
}

// ProfileURL joins the profile base URL and a login.
func (w *Writer) ProfileURL(login string) string {
	return w.ProfileBaseURL + login
}

// Rows converts contributors to report rows, keeping their order.
func (w *Writer) Rows(contributors []*domain.Contributor) []Row {
	rows := make([]Row, 0, len(contributors))
	for _, c := range contributors {
		row := Row{
			Username:   c.Login,
			ProfileURL: w.ProfileURL(c.Login),
			Email:      c.Email,
		}
		if w.WithContributions {
			row.Contributions = c.RepositoryNames()
		}
		rows = append(rows, row)
	}
	return rows
}

// ResolvePath returns the file the report is written to.
// An output ending in a path separator, or naming an existing directory, gets contributors.<ext> appended.
func (w *Writer) ResolvePath(output string) string {
	name := w.DefaultFileName()
	if strings.HasSuffix(output, "/") || strings.HasSuffix(output, string(os.PathSeparator)) {
		return filepath.Join(output, name)
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return filepath.Join(output, name)
	}
	return output
}

// DefaultFileName is the report file name used when only a directory is given.
func (w *Writer) DefaultFileName() string {
	if w.Format == "" {
		return "contributors." + string(FormatCSV)
	}
	return "contributors." + string(w.Format)
}

// Write writes the report for contributors to output and returns the resolved path.
// The file is replaced atomically, so a failed write leaves no partial report behind.
// An existing report keeps its permissions; a new one gets 0666 minus the umask.
func (w *Writer) Write(output string, contributors []*domain.Contributor) (string, error) {
	path := w.ResolvePath(output)

	tmp, err := createTemp(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrOutputWrite, path, err)
	}
	defer os.Remove(tmp.Name())

	if err := w.Encode(tmp, contributors); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: %s: %w", domain.ErrOutputWrite, path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrOutputWrite, path, err)
	}
	if info, err := os.Stat(path); err == nil {
		if err := os.Chmod(tmp.Name(), info.Mode().Perm()); err != nil {
			return "", fmt.Errorf("%w: %s: %w", domain.ErrOutputWrite, path, err)
		}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("%w: %s: %w", domain.ErrOutputWrite, path, err)
	}
	return path, nil
}

// createTemp creates an empty file next to path. Unlike os.CreateTemp it opens
// the file with mode 0666, so the process umask applies.
func createTemp(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	for range 10 {
		name := filepath.Join(dir, fmt.Sprintf(".contributors-%d-%d.tmp", os.Getpid(), rand.Int64()))
		f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o666)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		return f, err
	}
	return nil, fmt.Errorf("failed to create a temporary file in %s", dir)
}

// Encode writes the report to out in the writer's format.
func (w *Writer) Encode(out io.Writer, contributors []*domain.Contributor) error {
	rows := w.Rows(contributors)
	switch w.Format {
	case FormatCSV, "":
		return w.encodeCSV(out, rows)
	case FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case FormatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q", w.Format)
	}
}

func (w *Writer) encodeCSV(out io.Writer, rows []Row) error {
	cw := csv.NewWriter(out)
	header := []string{"username", "profile_url", "email"}
	if w.WithContributions {
		header = append(header, "contributions")
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{row.Username, row.ProfileURL, row.Email}
		if w.WithContributions {
			record = append(record, strings.Join(row.Contributions, ";"))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
