// Package redmine reads Redmine issues exported as one JSON document per issue
package redmine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/sets"
)

var (
	ErrDirectoryNotFound = errors.New("redmine issue directory not found")
	ErrRecordNotFound    = errors.New("redmine issue not found")
	ErrMalformedRecord   = errors.New("malformed redmine issue")
)

const recordExtension = ".json"

var recordPattern = regexp.MustCompile(`^\d{1,10}\.json$`)

// Store handles reading of exported Redmine issues from a directory
type Store struct {
	dir    string
	logger *logrus.Entry

	files map[int]string
}

// NewStore creates a new store reading issues from dir
func NewStore(dir string) *Store {
	return &Store{
		dir:    dir,
		logger: logrus.WithField("component", "redmine-store"),
	}
}

// Dir returns the directory the store reads from
func (s *Store) Dir() string {
	return s.dir
}

// TicketIDs returns ids of all issues present in the directory, ascending
func (s *Store) TicketIDs() ([]int, error) {
	if err := s.index(); err != nil {
		return nil, err
	}
	return sets.List(sets.KeySet(s.files)), nil
}

// Load reads and parses the issue with the given id
func (s *Store) Load(id int) (*Ticket, error) {
	if err := s.index(); err != nil {
		return nil, err
	}
	name, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrRecordNotFound, id)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %d", ErrRecordNotFound, id)
		}
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	ticket, err := ParseTicket(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if ticket.ID != id {
		return nil, fmt.Errorf("%s: %w: document id %d does not match file name", name, ErrMalformedRecord, ticket.ID)
	}
	return ticket, nil
}

// index scans the directory once and remembers which file holds which issue
func (s *Store) index() error {
	if s.files != nil {
		return nil
	}

	info, err := os.Stat(s.dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrDirectoryNotFound, s.dir)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", s.dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && recordPattern.MatchString(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	files := make(map[int]string, len(names))
	for _, name := range names {
		id, err := strconv.Atoi(strings.TrimSuffix(name, recordExtension))
		if err != nil {
			continue
		}
		if existing, ok := files[id]; ok {
			s.logger.Warnf("Both %s and %s hold Redmine issue %d, using %s", existing, name, id, existing)
			continue
		}
		files[id] = name
	}
	s.files = files
	return nil
}
