// Package mapping persists the mapping between Redmine issue ids and the GitHub
// issue numbers they were migrated to
package mapping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/natefinch/atomic"
	"k8s.io/apimachinery/pkg/util/sets"
)

// Store holds the identity mapping. Entries are never overwritten once added.
type Store struct {
	path string

	entries map[int]int
	// pending maps import handles to the Redmine id they were submitted for
	pending map[int64]int
}

// Load reads the mapping stored at path. A missing file yields an empty mapping.
func Load(path string) (*Store, error) {
	s := &Store{
		path:    path,
		entries: map[int]int{},
		pending: map[int64]int{},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return s, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse mapping file %s: %w", path, err)
	}

	for key, value := range raw {
		source, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("mapping file %s: key %q is not a Redmine issue id", path, key)
		}
		destination, err := parseNumber(value)
		if err != nil {
			return nil, fmt.Errorf("mapping file %s: value %s for %d is not a GitHub issue number", path, value, source)
		}
		s.entries[source] = destination
	}

	return s, nil
}

// parseNumber accepts both 12 and "12", older mapping files stored numbers as strings
func parseNumber(value json.RawMessage) (int, error) {
	var number int
	if err := json.Unmarshal(value, &number); err == nil {
		return number, nil
	}
	var text string
	if err := json.Unmarshal(value, &text); err != nil {
		return 0, err
	}
	return strconv.Atoi(text)
}

// Path returns the file the mapping is persisted to
func (s *Store) Path() string {
	return s.path
}

// Lookup returns the GitHub issue number for a Redmine issue id
func (s *Store) Lookup(source int) (int, bool) {
	destination, ok := s.entries[source]
	return destination, ok
}

// Add records a mapping unless the source id is already mapped. It returns
// whether the entry was added.
func (s *Store) Add(source, destination int) bool {
	if _, exists := s.entries[source]; exists {
		return false
	}
	s.entries[source] = destination
	return true
}

// Len returns the number of mapped Redmine issues
func (s *Store) Len() int {
	return len(s.entries)
}

// SourceIDs returns all mapped Redmine issue ids, ascending
func (s *Store) SourceIDs() []int {
	return sets.List(sets.KeySet(s.entries))
}

// Entries returns a copy of the mapping
func (s *Store) Entries() map[int]int {
	entries := make(map[int]int, len(s.entries))
	for source, destination := range s.entries {
		entries[source] = destination
	}
	return entries
}

// TrackPending remembers that an import submitted for the source id is waiting
// for resolution under the given handle
func (s *Store) TrackPending(handle int64, source int) {
	s.pending[handle] = source
}

// PendingCount returns the number of import handles not resolved yet
func (s *Store) PendingCount() int {
	return len(s.pending)
}

// Resolve rekeys resolved import handles to their Redmine ids. Handles this store
// does not track are ignored, and existing entries are preserved. It returns the
// number of entries added.
func (s *Store) Resolve(resolved map[int64]int) int {
	added := 0
	handles := make([]int64, 0, len(resolved))
	for handle := range resolved {
		handles = append(handles, handle)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })

	for _, handle := range handles {
		source, tracked := s.pending[handle]
		if !tracked {
			continue
		}
		delete(s.pending, handle)
		if s.Add(source, resolved[handle]) {
			added++
		}
	}
	return added
}

// Save writes the whole mapping to its file, replacing it atomically
func (s *Store) Save() error {
	data, err := s.marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write mapping file: %w", err)
	}
	// atomic.WriteFile leaves the temporary file's 0600 permissions in place
	if err := os.Chmod(s.path, 0644); err != nil {
		return fmt.Errorf("failed to set mapping file permissions: %w", err)
	}
	return nil
}

func (s *Store) marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, source := range s.SourceIDs() {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  ")
		key, err := json.Marshal(strconv.Itoa(source))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteString(": ")
		buf.WriteString(strconv.Itoa(s.entries[source]))
	}
	if len(s.entries) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}
