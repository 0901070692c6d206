package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitcase/packages/catalog"
	"github.com/abdul-hamid-achik/hitcase/packages/core/model"
)

var validateCmd = &cobra.Command{
	Use:   "validate <catalog>...",
	Short: "Validate catalog files without executing them",
	Long: `Validate catalog files against the catalog schema and check ids and
default environments, without executing any request.

Examples:
  hitcase validate api.yaml
  hitcase validate api.yaml billing.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func validateCommand(cmd *cobra.Command, args []string) error {
	hasErrors := false
	for _, file := range args {
		c, err := catalog.Load(file)
		if err != nil {
			hasErrors = true
			var verr *model.ValidationError
			if errors.As(err, &verr) {
				fmt.Fprintf(cmd.OutOrStderr(), "Error in %s:\n", file)
				for _, problem := range verr.Problems {
					fmt.Fprintf(cmd.OutOrStderr(), "  - %s\n", problem)
				}
				continue
			}
			fmt.Fprintf(cmd.OutOrStderr(), "Error in %s: %v\n", file, err)
			continue
		}

		projects, environments, testCases := c.Counts()
		fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s (%d projects, %d environments, %d test cases)\n",
			file, projects, environments, testCases)
	}

	if hasErrors {
		return withExitCode(ExitParseError, errors.New("validation failed"))
	}
	return nil
}
