package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// closer is the part of the GitHub client closing issues
type closer interface {
	CloseTicket(number int) (bool, error)
}

func newCloseCmd(root *rootOptions) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "close <number>...",
		Short: "Close GitHub issues by number",
		Long: `Close GitHub issues in the target repository by their numbers.

Issues that are already closed are left untouched. This is useful for placeholder
issues or for issues whose Redmine status was not recognized as closed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			numbers, err := parseIssueNumbers(args)
			if err != nil {
				return err
			}
			if err := root.github.Validate(); err != nil {
				return fmt.Errorf("invalid GitHub options: %w", err)
			}
			client, err := root.github.ImportClient(dryRun)
			if err != nil {
				return err
			}
			return closeIssues(client, numbers)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log issue edits instead of performing them")
	return cmd
}

func parseIssueNumbers(args []string) ([]int, error) {
	numbers := make([]int, 0, len(args))
	for _, arg := range args {
		number, err := strconv.Atoi(strings.TrimPrefix(arg, "#"))
		if err != nil || number <= 0 {
			return nil, fmt.Errorf("%q is not a GitHub issue number", arg)
		}
		numbers = append(numbers, number)
	}
	return numbers, nil
}

// closeIssues closes every issue and reports all failures together
func closeIssues(client closer, numbers []int) error {
	var errs []error
	for _, number := range numbers {
		closed, err := client.CloseTicket(number)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !closed {
			errs = append(errs, fmt.Errorf("issue #%d is still open", number))
		}
	}
	if len(errs) > 0 {
		logrus.Warnf("Failed to close %d of %d issues", len(errs), len(numbers))
	}
	return errors.Join(errs...)
}
