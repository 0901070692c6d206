package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitcase/packages/catalog"
)

var listCmd = &cobra.Command{
	Use:   "list <catalog>",
	Short: "List projects, environments and test cases of a catalog",
	Long: `List everything defined in a catalog file.

Examples:
  hitcase list api.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	c, err := catalog.Load(args[0])
	if err != nil {
		return withExitCode(ExitParseError, err)
	}

	out := cmd.OutOrStdout()
	for _, p := range c.Projects {
		fmt.Fprintf(out, "\n[%d] %s\n", p.ID, p.Name)

		if len(p.Environments) > 0 {
			fmt.Fprintf(out, "  environments:\n")
		}
		for _, e := range p.Environments {
			marker := ""
			if e.IsDefault {
				marker = " (default)"
			}
			fmt.Fprintf(out, "    [%d] %s  %s%s\n", e.ID, e.Code, e.BaseURL, marker)
		}

		if len(p.TestCases) > 0 {
			fmt.Fprintf(out, "  test cases:\n")
		}
		for _, tc := range p.TestCases {
			fmt.Fprintf(out, "    [%d] %s  %s %s  (%d assertions)\n",
				tc.ID, tc.Name, tc.Method, tc.URL, len(tc.Assertions))
		}
	}
	return nil
}
