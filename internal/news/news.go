// Package news keeps the news feed: an ordered list of records
// persisted as a CSV file and addressed by position.
//
// A record has no identifier. Its index is its zero-based position at the
// time of the call, so removing a record shifts every later index down by one.
package news

import "errors"

// ErrNotFound is returned when an index falls outside [0, length).
var ErrNotFound = errors.New("news: record not found")

// header is the column layout of the persisted file.
var header = []string{"title", "description", "date"}

// Record is one news entry. Date is expected as YYYY-MM-DD but is stored
// as opaque text.
type Record struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

// Store is the positional record store used by the HTTP layer.
type Store interface {
	// ListAll returns every record in storage order.
	ListAll() ([]Record, error)
	// GetAt returns the record at index.
	GetAt(index int) (Record, error)
	// Append adds rec at the end and returns it.
	Append(rec Record) (Record, error)
	// ReplaceAt overwrites the record at index and returns the new record.
	ReplaceAt(index int, rec Record) (Record, error)
	// RemoveAt deletes the record at index and returns it.
	RemoveAt(index int) (Record, error)
}

func inBounds(index, n int) bool {
	return index >= 0 && index < n
}

// removeAt returns records without the element at index. The caller checks bounds.
func removeAt(records []Record, index int) ([]Record, Record) {
	removed := records[index]
	out := make([]Record, 0, len(records)-1)
	out = append(out, records[:index]...)
	out = append(out, records[index+1:]...)
	return out, removed
}
