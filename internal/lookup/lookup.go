// Package lookup loads the tables translating Redmine user names, label sources and
// versions into their GitHub counterparts
package lookup

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

// loadTable reads a flat YAML map of Redmine values to GitHub values
func loadTable(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}

	var table map[string]string
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse mapping file %s: %w", path, err)
	}

	if table == nil {
		table = make(map[string]string)
	}
	return table, nil
}

// Users maps Redmine user names to GitHub logins
type Users struct {
	logins map[string]string
}

// NewUsers creates a user table from an in-memory map
func NewUsers(logins map[string]string) *Users {
	return &Users{logins: logins}
}

// LoadUsers loads the user table from path. A table without any entry is an error.
func LoadUsers(path string) (*Users, error) {
	table, err := loadTable(path)
	if err != nil {
		return nil, err
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("no names found in user mapping file %s", path)
	}
	return NewUsers(table), nil
}

// Resolve returns the GitHub login for a Redmine user name
func (u *Users) Resolve(name string) (string, bool) {
	if u == nil {
		return "", false
	}
	login, ok := u.logins[name]
	login = strings.TrimPrefix(login, "@")
	return login, ok && login != ""
}

// GitHubUser returns the GitHub login for the Redmine user, optionally as an @mention.
// Unmapped users are returned verbatim; an empty name yields an empty string.
func (u *Users) GitHubUser(name string, withAt bool) string {
	if name == "" {
		return ""
	}
	login, ok := u.Resolve(name)
	if !ok {
		return name
	}
	if withAt {
		return "@" + login
	}
	return login
}

// Len returns the number of mapped users
func (u *Users) Len() int {
	if u == nil {
		return 0
	}
	return len(u.logins)
}

// Labels maps Redmine tracker, priority, category and status names to GitHub labels
type Labels struct {
	labels map[string]string
}

// NewLabels creates a label table from an in-memory map
func NewLabels(labels map[string]string) *Labels {
	return &Labels{labels: labels}
}

// LoadLabels loads the label table from path
func LoadLabels(path string) (*Labels, error) {
	table, err := loadTable(path)
	if err != nil {
		return nil, err
	}
	return NewLabels(table), nil
}

// Resolve returns the GitHub label for a Redmine value
func (l *Labels) Resolve(name string) (string, bool) {
	if l == nil || name == "" {
		return "", false
	}
	label, ok := l.labels[name]
	return label, ok && label != ""
}

// Milestones maps Redmine version names to GitHub milestone numbers
type Milestones struct {
	numbers map[string]int
}

// NewMilestones creates a milestone table from an in-memory map
func NewMilestones(numbers map[string]int) *Milestones {
	return &Milestones{numbers: numbers}
}

// LoadMilestones loads the milestone table from path. Values must be milestone numbers.
func LoadMilestones(path string) (*Milestones, error) {
	table, err := loadTable(path)
	if err != nil {
		return nil, err
	}

	numbers := make(map[string]int, len(table))
	for version, value := range table {
		number, err := strconv.Atoi(value)
		if err != nil || number <= 0 {
			return nil, fmt.Errorf("mapping file %s: milestone for %q must be a positive number, got %q", path, version, value)
		}
		numbers[version] = number
	}
	return NewMilestones(numbers), nil
}

// Resolve returns the GitHub milestone number for a Redmine version name
func (m *Milestones) Resolve(version string) (int, bool) {
	if m == nil || version == "" {
		return 0, false
	}
	number, ok := m.numbers[version]
	return number, ok
}
