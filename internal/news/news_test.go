package news

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kjk/common/assert"
)

var (
	t1 = Record{Title: "t1", Description: "d1", Date: "2024-01-01"}
	t2 = Record{Title: "t2", Description: "d2", Date: "2024-01-02"}
	t3 = Record{Title: "t3", Description: "d3", Date: "2024-01-03"}
)

type storeFactory struct {
	name string
	new  func(t *testing.T) Store
}

func factories() []storeFactory {
	return []storeFactory{
		{
			name: "csv",
			new: func(t *testing.T) Store {
				s, err := NewCSVStore(filepath.Join(t.TempDir(), "news.csv"))
				if err != nil {
					t.Fatalf("NewCSVStore: %v", err)
				}
				return s
			},
		},
		{
			name: "memory",
			new: func(t *testing.T) Store {
				return NewMemoryStore()
			},
		},
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for _, f := range factories() {
		t.Run(f.name, func(t *testing.T) {
			fn(t, f.new(t))
		})
	}
}

func mustAppend(t *testing.T, s Store, recs ...Record) {
	t.Helper()
	for _, r := range recs {
		_, err := s.Append(r)
		assert.NoError(t, err)
	}
}

func TestEmptyStoreListsNothing(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		recs, err := s.ListAll()
		assert.NoError(t, err)
		assert.NotNil(t, recs)
		assert.Len(t, recs, 0)
	})
}

func TestAppendRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		mustAppend(t, s, t1)
		got, err := s.Append(t2)
		assert.NoError(t, err)
		assert.Equal(t, t2, got)

		recs, err := s.ListAll()
		assert.NoError(t, err)
		assert.Equal(t, t2, recs[len(recs)-1])

		last, err := s.GetAt(len(recs) - 1)
		assert.NoError(t, err)
		assert.Equal(t, t2, last)
	})
}

func TestRemoveShiftsIndices(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		mustAppend(t, s, t1, t2, t3)

		removed, err := s.RemoveAt(0)
		assert.NoError(t, err)
		assert.Equal(t, t1, removed)

		recs, err := s.ListAll()
		assert.NoError(t, err)
		assert.Equal(t, []Record{t2, t3}, recs)

		first, err := s.GetAt(0)
		assert.NoError(t, err)
		assert.Equal(t, t2, first)
	})
}

func TestRemoveMiddleAndLast(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		mustAppend(t, s, t1, t2, t3)

		removed, err := s.RemoveAt(1)
		assert.NoError(t, err)
		assert.Equal(t, t2, removed)

		removed, err = s.RemoveAt(1)
		assert.NoError(t, err)
		assert.Equal(t, t3, removed)

		recs, err := s.ListAll()
		assert.NoError(t, err)
		assert.Equal(t, []Record{t1}, recs)
	})
}

func TestReplaceAt(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		mustAppend(t, s, t1, t2)

		got, err := s.ReplaceAt(1, t3)
		assert.NoError(t, err)
		assert.Equal(t, t3, got)

		recs, err := s.ListAll()
		assert.NoError(t, err)
		assert.Equal(t, []Record{t1, t3}, recs)
	})
}

func TestOutOfBounds(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		mustAppend(t, s, t1, t2)
		n := 2

		calls := map[string]func() error{
			"GetAt(N)": func() error {
				_, err := s.GetAt(n)
				return err
			},
			"GetAt(-1)": func() error {
				_, err := s.GetAt(-1)
				return err
			},
			"ReplaceAt(N)": func() error {
				_, err := s.ReplaceAt(n, t3)
				return err
			},
			"ReplaceAt(-1)": func() error {
				_, err := s.ReplaceAt(-1, t3)
				return err
			},
			"RemoveAt(N)": func() error {
				_, err := s.RemoveAt(n)
				return err
			},
			"RemoveAt(-1)": func() error {
				_, err := s.RemoveAt(-1)
				return err
			},
		}
		for name, call := range calls {
			err := call()
			assert.True(t, errors.Is(err, ErrNotFound), "%s: got %v", name, err)
		}

		// failed calls must not change anything
		recs, err := s.ListAll()
		assert.NoError(t, err)
		assert.Equal(t, []Record{t1, t2}, recs)
	})
}

func TestGetAtOnEmptyStore(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		_, err := s.GetAt(0)
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestListAllIsIdempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		mustAppend(t, s, t1, t2)
		a, err := s.ListAll()
		assert.NoError(t, err)
		b, err := s.ListAll()
		assert.NoError(t, err)
		assert.Equal(t, a, b)
	})
}

func TestScenario(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		mustAppend(t, s, t1, t2)

		recs, err := s.ListAll()
		assert.NoError(t, err)
		assert.Equal(t, []Record{t1, t2}, recs)

		removed, err := s.RemoveAt(0)
		assert.NoError(t, err)
		assert.Equal(t, t1, removed)

		recs, err = s.ListAll()
		assert.NoError(t, err)
		assert.Equal(t, []Record{t2}, recs)
	})
}

func TestListAllReturnsCopy(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		mustAppend(t, s, t1)
		recs, err := s.ListAll()
		assert.NoError(t, err)
		recs[0].Title = "changed"

		got, err := s.GetAt(0)
		assert.NoError(t, err)
		assert.Equal(t, t1, got)
	})
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	d, err := os.ReadFile(path)
	assert.NoError(t, err)
	return string(d)
}

func TestCSVStoreCreatesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "news.csv")
	s, err := NewCSVStore(path)
	assert.NoError(t, err)
	assert.Equal(t, path, s.Path())
	assert.Equal(t, "title,description,date\n", readFile(t, path))

	recs, err := s.ListAll()
	assert.NoError(t, err)
	assert.Len(t, recs, 0)
}

func TestCSVStoreHeaderSurvivesRemovingLastRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "news.csv")
	s, err := NewCSVStore(path)
	assert.NoError(t, err)
	mustAppend(t, s, t1)
	_, err = s.RemoveAt(0)
	assert.NoError(t, err)
	assert.Equal(t, "title,description,date\n", readFile(t, path))
}

func TestCSVStoreKeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "news.csv")
	content := "title,description,date\nold,kept,2023-05-06\n"
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := NewCSVStore(path)
	assert.NoError(t, err)
	assert.Equal(t, content, readFile(t, path))

	recs, err := s.ListAll()
	assert.NoError(t, err)
	assert.Equal(t, []Record{{Title: "old", Description: "kept", Date: "2023-05-06"}}, recs)
}

func TestCSVStoreFileLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "news.csv")
	s, err := NewCSVStore(path)
	assert.NoError(t, err)
	mustAppend(t, s, t1, t2)

	exp := "title,description,date\nt1,d1,2024-01-01\nt2,d2,2024-01-02\n"
	assert.Equal(t, exp, readFile(t, path))
}

func TestWriteCSVMatchesFileLayout(t *testing.T) {
	var sb strings.Builder
	assert.NoError(t, WriteCSV(&sb, []Record{t1, t2}))
	assert.Equal(t, "title,description,date\nt1,d1,2024-01-01\nt2,d2,2024-01-02\n", sb.String())

	sb.Reset()
	assert.NoError(t, WriteCSV(&sb, nil))
	assert.Equal(t, "title,description,date\n", sb.String())
}

func TestCSVStoreQuotedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "news.csv")
	s, err := NewCSVStore(path)
	assert.NoError(t, err)

	rec := Record{
		Title:       `Breaking, "quoted" news`,
		Description: "line one\nline two",
		Date:        "not a date",
	}
	mustAppend(t, s, rec)

	got, err := s.GetAt(0)
	assert.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestCSVStoreMapsColumnsByHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "news.csv")
	content := "date,title,extra,description\n2024-02-02,reordered,x,desc\n2024-03-03,short\n"
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := NewCSVStore(path)
	assert.NoError(t, err)
	recs, err := s.ListAll()
	assert.NoError(t, err)
	assert.Equal(t, []Record{
		{Title: "reordered", Description: "desc", Date: "2024-02-02"},
		{Title: "short", Description: "", Date: "2024-03-03"},
	}, recs)

	// a mutation rewrites the file in the canonical layout
	mustAppend(t, s, t1)
	assert.True(t, strings.HasPrefix(readFile(t, path), "title,description,date\n"))
}

func TestCSVStoreEmptyFileIsEmptyList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "news.csv")
	assert.NoError(t, os.WriteFile(path, nil, 0o644))

	s, err := NewCSVStore(path)
	assert.NoError(t, err)
	recs, err := s.ListAll()
	assert.NoError(t, err)
	assert.Len(t, recs, 0)
}

func TestCSVStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewCSVStore(filepath.Join(dir, "news.csv"))
	assert.NoError(t, err)
	mustAppend(t, s, t1, t2, t3)
	_, err = s.ReplaceAt(0, t2)
	assert.NoError(t, err)
	_, err = s.RemoveAt(2)
	assert.NoError(t, err)

	entries, err := os.ReadDir(dir)
	assert.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "news.csv", entries[0].Name())
}

func TestCSVStoreSeesExternalEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "news.csv")
	s, err := NewCSVStore(path)
	assert.NoError(t, err)
	mustAppend(t, s, t1)

	assert.NoError(t, os.WriteFile(path, []byte("title,description,date\nx,y,z\n"), 0o644))
	got, err := s.GetAt(0)
	assert.NoError(t, err)
	assert.Equal(t, Record{Title: "x", Description: "y", Date: "z"}, got)
}

func TestCSVStoreMissingFileIsIOError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "news.csv")
	s, err := NewCSVStore(path)
	assert.NoError(t, err)
	assert.NoError(t, os.Remove(path))

	_, err = s.ListAll()
	assert.NotNil(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

// A 255 byte name is valid, but the temp file atomicfile creates next to it
// (name plus a random suffix) is not, so every rewrite fails.
func TestCSVStoreFailedWriteKeepsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), strings.Repeat("n", 251)+".csv")
	orig := "title,description,date\nt1,d1,2024-01-01\nt2,d2,2024-01-02\n"
	assert.NoError(t, os.WriteFile(path, []byte(orig), 0o644))

	s, err := NewCSVStore(path)
	assert.NoError(t, err)

	_, err = s.ReplaceAt(0, t3)
	assert.NotNil(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))

	_, err = s.RemoveAt(1)
	assert.NotNil(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))

	_, err = s.Append(t3)
	assert.NotNil(t, err)

	assert.Equal(t, orig, readFile(t, path))
	recs, err := s.ListAll()
	assert.NoError(t, err)
	assert.Equal(t, []Record{t1, t2}, recs)

	entries, err := os.ReadDir(filepath.Dir(path))
	assert.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNewCSVStoreEmptyPath(t *testing.T) {
	_, err := NewCSVStore("")
	assert.NotNil(t, err)
}

func TestCSVStoreConcurrentAppends(t *testing.T) {
	s, err := NewCSVStore(filepath.Join(t.TempDir(), "news.csv"))
	assert.NoError(t, err)

	const n = 20
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := s.Append(t1)
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		assert.NoError(t, <-errs)
	}

	recs, err := s.ListAll()
	assert.NoError(t, err)
	assert.Len(t, recs, n)
}
