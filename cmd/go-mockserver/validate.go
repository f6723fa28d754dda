package main

import (
	"fmt"
	"io"

	"github.com/prasenjit/go-mockserver/internal/matcher"
	"github.com/prasenjit/go-mockserver/internal/mockfile"
	"github.com/prasenjit/go-mockserver/internal/models"
	"github.com/prasenjit/go-mockserver/internal/registry"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a JSON or YAML mock file",
	Long: `Loads a list of mocks from a JSON or YAML file, validates each one the way
the admin API would, and reports mocks that conflict with an earlier entry.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	mocks, err := mockfile.ReadFile(args[0])
	if err != nil {
		return err
	}

	problems := validateMocks(mocks)
	report(cmd.OutOrStdout(), len(mocks), problems)
	if len(problems) > 0 {
		return fmt.Errorf("%d of %d mocks are invalid", len(problems), len(mocks))
	}
	return nil
}

type problem struct {
	index int
	mock  models.Mock
	err   error
}

// validateMocks normalizes each mock and checks it against the ones accepted
// before it.
func validateMocks(mocks []models.Mock) []problem {
	var problems []problem
	accepted := make([]models.Mock, 0, len(mocks))

	for i, m := range mocks {
		if err := registry.Normalize(&m); err != nil {
			problems = append(problems, problem{index: i, mock: m, err: err})
			continue
		}
		if existing, ok := matcher.FindConflict(m, accepted); ok {
			problems = append(problems, problem{
				index: i,
				mock:  m,
				err:   &registry.ConflictError{Existing: existing.Summary()},
			})
			continue
		}
		accepted = append(accepted, m)
	}

	return problems
}

func report(w io.Writer, total int, problems []problem) {
	for _, p := range problems {
		name := p.mock.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(w, "mock #%d %s %s %s: %v\n", p.index+1, name, p.mock.Method, p.mock.Path, p.err)
	}
	fmt.Fprintf(w, "%d mocks checked, %d valid\n", total, total-len(problems))
}
