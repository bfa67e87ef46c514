package universe

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"QuietSpike/internal/domain/models"
	"QuietSpike/internal/domain/repository"
)

var header = []string{"code", "name"}

// ReadCSV parses a code,name file. Codes are kept as text so leading zeros survive.
func ReadCSV(r io.Reader) ([]models.Symbol, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []models.Symbol
	seen := make(map[string]bool)
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("universe line %d: %w", line, err)
		}
		code := strings.TrimSpace(strings.TrimPrefix(rec[0], "\ufeff"))
		if line == 1 && strings.EqualFold(code, "code") {
			continue
		}
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		s := models.Symbol{Code: code}
		if len(rec) > 1 {
			s.Name = strings.TrimSpace(rec[1])
		}
		out = append(out, s)
	}
	return out, nil
}

// WriteCSV writes symbols with a code,name header.
func WriteCSV(w io.Writer, symbols []models.Symbol) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, s := range symbols {
		if err := cw.Write([]string{s.Code, s.Name}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FileSource reads the universe from a CSV file on every call.
type FileSource struct {
	path string
}

var _ repository.UniverseSource = (*FileSource)(nil)

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Symbols(_ context.Context) ([]models.Symbol, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open universe: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// Save replaces the file atomically.
func (s *FileSource) Save(symbols []models.Symbol) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".universe-*.csv")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, symbols); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Refresh pulls the listing from md and saves it.
func (s *FileSource) Refresh(ctx context.Context, md repository.MarketData) (int, error) {
	symbols, err := md.FetchUniverse(ctx)
	if err != nil {
		return 0, err
	}
	if len(symbols) == 0 {
		return 0, fmt.Errorf("%w: empty universe", models.ErrUpstreamUnavailable)
	}
	if err := s.Save(symbols); err != nil {
		return 0, fmt.Errorf("save universe: %w", err)
	}
	return len(symbols), nil
}

// StaticSource serves a fixed list, used when symbols are given explicitly.
type StaticSource []models.Symbol

func (s StaticSource) Symbols(context.Context) ([]models.Symbol, error) {
	return s, nil
}

// FromCodes builds a StaticSource from bare codes.
func FromCodes(codes []string) StaticSource {
	out := make(StaticSource, 0, len(codes))
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, models.Symbol{Code: c})
		}
	}
	return out
}
