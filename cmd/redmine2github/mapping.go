package main

import (
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/petr-muller/redmine2github/internal/mapping"
	"github.com/petr-muller/redmine2github/internal/mapview"
	"github.com/petr-muller/redmine2github/internal/redmine"
)

type inspectOptions struct {
	sourceOptions

	plain bool
}

func newMappingCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Work with the mapping between Redmine ids and GitHub issue numbers",
	}
	cmd.AddCommand(newInspectCmd(root))
	return cmd
}

func newInspectCmd(root *rootOptions) *cobra.Command {
	o := &inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show which Redmine issues were migrated to which GitHub issues",
		Long: `Show the mapping between Redmine ids and GitHub issue numbers.

When --issues is given, exported Redmine issues that are not in the mapping are
listed as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := o.rows()
			if err != nil {
				return err
			}
			if o.plain {
				return mapview.WritePlain(cmd.OutOrStdout(), rows)
			}
			return runInspectUI(root.github.Owner+"/"+root.github.Repo, o.redmineServer, rows, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	o.addFlags(cmd.Flags())
	cmd.Flags().BoolVar(&o.plain, "plain", false, "Print tab-separated output instead of the interactive table")
	return cmd
}

func (o *inspectOptions) rows() ([]mapview.Row, error) {
	if o.mappingPath == "" {
		return nil, errors.New("--mapping must be specified")
	}
	store, err := mapping.Load(o.mappingPath)
	if err != nil {
		return nil, err
	}

	var recordIDs []int
	if o.issues != "" {
		if recordIDs, err = redmine.NewStore(o.issues).TicketIDs(); err != nil {
			return nil, err
		}
	}
	return mapview.Rows(store.Entries(), recordIDs), nil
}

func runInspectUI(repository, server string, rows []mapview.Row, in io.Reader, out io.Writer) error {
	p := tea.NewProgram(mapview.NewModel(repository, server, rows), tea.WithAltScreen(), tea.WithInput(in), tea.WithOutput(out))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("cannot display mapping: %w", err)
	}
	return nil
}
