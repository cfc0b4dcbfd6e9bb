package news

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/kjk/common/atomicfile"
)

// CSVStore persists records in a CSV file with a title,description,date
// header. Every call re-reads the file; every mutation rewrites all of it.
//
// The rewrite goes through a temp file that is renamed over the original,
// so readers see either the old or the new content. Mutations on one
// CSVStore are serialized. Separate processes writing the same file are
// not coordinated.
type CSVStore struct {
	path string
	mu   sync.Mutex
}

var _ Store = (*CSVStore)(nil)

// NewCSVStore returns a store backed by path, creating the file with only
// the header line if it does not exist yet. An existing file is left untouched.
func NewCSVStore(path string) (*CSVStore, error) {
	if path == "" {
		return nil, errors.New("news: empty file path")
	}
	s := &CSVStore{path: path}

	_, err := os.Stat(path)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("news: stat %s: %w", path, err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("news: create dir %s: %w", dir, err)
		}
	}
	if err := s.persist(nil); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file path.
func (s *CSVStore) Path() string {
	return s.path
}

func (s *CSVStore) ListAll() ([]Record, error) {
	return s.load()
}

func (s *CSVStore) GetAt(index int) (Record, error) {
	records, err := s.load()
	if err != nil {
		return Record{}, err
	}
	if !inBounds(index, len(records)) {
		return Record{}, ErrNotFound
	}
	return records[index], nil
}

func (s *CSVStore) Append(rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return Record{}, err
	}
	records = append(records, rec)
	if err := s.persist(records); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *CSVStore) ReplaceAt(index int, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return Record{}, err
	}
	if !inBounds(index, len(records)) {
		return Record{}, ErrNotFound
	}
	records[index] = rec
	if err := s.persist(records); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *CSVStore) RemoveAt(index int) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return Record{}, err
	}
	if !inBounds(index, len(records)) {
		return Record{}, ErrNotFound
	}
	remaining, removed := removeAt(records, index)
	if err := s.persist(remaining); err != nil {
		return Record{}, err
	}
	return removed, nil
}

// load reads the whole file. Columns are mapped by header name; a column
// missing from the header reads as an empty string and short rows are padded.
func (s *CSVStore) load() ([]Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("news: open %s: %w", s.path, err)
	}
	defer func() { _ = f.Close() }()

	return decode(f)
}

func decode(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	hdr, err := cr.Read()
	if err == io.EOF {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("news: read header: %w", err)
	}

	col := map[string]int{}
	for i, name := range hdr {
		if _, dup := col[name]; !dup {
			col[name] = i
		}
	}
	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	records := []Record{}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("news: read row: %w", err)
		}
		records = append(records, Record{
			Title:       field(row, "title"),
			Description: field(row, "description"),
			Date:        field(row, "date"),
		})
	}
	return records, nil
}

// persist replaces the file with header plus records.
func (s *CSVStore) persist(records []Record) error {
	f, err := atomicfile.New(s.path)
	if err != nil {
		return fmt.Errorf("news: create %s: %w", s.path, err)
	}
	defer f.RemoveIfNotClosed()

	if err := encode(f, records); err != nil {
		return fmt.Errorf("news: write %s: %w", s.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("news: replace %s: %w", s.path, err)
	}
	return nil
}

// WriteCSV writes records to w in the on-disk format, header first.
func WriteCSV(w io.Writer, records []Record) error {
	return encode(w, records)
}

func encode(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, rec := range records {
		if err := cw.Write([]string{rec.Title, rec.Description, rec.Date}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
