package mapping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadMissingFile(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "map.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("expected empty mapping, got %d entries", s.Len())
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		expected    map[int]int
		expectError bool
	}{
		{
			name:     "numbers",
			content:  `{"10": 1, "12": 3}`,
			expected: map[int]int{10: 1, 12: 3},
		},
		{
			name:     "numbers stored as strings",
			content:  `{"10": "1"}`,
			expected: map[int]int{10: 1},
		},
		{
			name:     "empty file",
			content:  "",
			expected: map[int]int{},
		},
		{
			name:        "not an object",
			content:     `[1, 2]`,
			expectError: true,
		},
		{
			name:        "non numeric key",
			content:     `{"abc": 1}`,
			expectError: true,
		},
		{
			name:        "non numeric value",
			content:     `{"1": "abc"}`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "map.json")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			s, err := Load(path)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.expected, s.Entries()); diff != "" {
				t.Errorf("entries differ (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAddNeverOverwrites(t *testing.T) {
	s, _ := Load(filepath.Join(t.TempDir(), "map.json"))

	if !s.Add(1, 10) {
		t.Errorf("expected first Add to succeed")
	}
	if s.Add(1, 20) {
		t.Errorf("expected second Add for the same source id to be rejected")
	}
	if got, _ := s.Lookup(1); got != 10 {
		t.Errorf("expected mapping 1 -> 10 to be kept, got %d", got)
	}
}

func TestResolve(t *testing.T) {
	s, _ := Load(filepath.Join(t.TempDir(), "map.json"))
	s.Add(5, 50)
	s.TrackPending(1001, 5)
	s.TrackPending(1002, 6)
	s.TrackPending(1003, 7)

	added := s.Resolve(map[int64]int{1001: 99, 1002: 60, 4242: 1})
	if added != 1 {
		t.Errorf("expected 1 added entry, got %d", added)
	}
	if diff := cmp.Diff(map[int]int{5: 50, 6: 60}, s.Entries()); diff != "" {
		t.Errorf("entries differ (-want +got):\n%s", diff)
	}
	if s.PendingCount() != 1 {
		t.Errorf("expected handle 1003 to stay pending, got %d pending", s.PendingCount())
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.json")
	s, _ := Load(path)
	s.Add(12, 3)
	s.Add(9, 1)
	s.Add(100, 7)

	if err := s.Save(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	expected := "{\n  \"9\": 1,\n  \"12\": 3,\n  \"100\": 7\n}\n"
	if string(raw) != expected {
		t.Errorf("unexpected file content:\n%s\nexpected:\n%s", raw, expected)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(s.Entries(), loaded.Entries()); diff != "" {
		t.Errorf("entries differ after reload (-want +got):\n%s", diff)
	}
}

func TestDefaultPathHonorsXDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg")
	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/tmp/xdg/redmine2github/redmine2github_map.json" {
		t.Errorf("unexpected path %q", path)
	}
}

func TestEnsureDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "redmine2github", "map.json")
	if err := EnsureDir(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info, err := os.Stat(filepath.Dir(path)); err != nil || !info.IsDir() {
		t.Errorf("expected directory for %s to exist", path)
	}
}
