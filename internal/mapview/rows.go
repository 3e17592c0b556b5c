// Package mapview displays the identity mapping between Redmine issues and the
// GitHub issues they were migrated to
package mapview

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"k8s.io/apimachinery/pkg/util/sets"
)

// Row is one Redmine issue in the view
type Row struct {
	RedmineID    int
	GitHubNumber int
	// Mapped is false for issues present in the record store but missing in the mapping
	Mapped bool
}

// Rows merges the mapping with the ids found in the record store, ascending by Redmine id
func Rows(entries map[int]int, recordIDs []int) []Row {
	ids := sets.KeySet(entries).Insert(recordIDs...)

	rows := make([]Row, 0, ids.Len())
	for _, id := range sets.List(ids) {
		number, mapped := entries[id]
		rows = append(rows, Row{RedmineID: id, GitHubNumber: number, Mapped: mapped})
	}
	return rows
}

// Unmapped counts the rows that have no GitHub issue
func Unmapped(rows []Row) int {
	count := 0
	for _, row := range rows {
		if !row.Mapped {
			count++
		}
	}
	return count
}

func (r Row) github() string {
	if !r.Mapped {
		return "-"
	}
	return "#" + strconv.Itoa(r.GitHubNumber)
}

// WritePlain writes the rows as tab-separated columns
func WritePlain(w io.Writer, rows []Row) error {
	tw := tabwriter.NewWriter(w, 0, 8, 1, '\t', 0)
	if _, err := fmt.Fprintln(tw, "REDMINE\tGITHUB"); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(tw, "%d\t%s\n", row.RedmineID, row.github()); err != nil {
			return err
		}
	}
	return tw.Flush()
}
