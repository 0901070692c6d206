package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitcase/packages/catalog"
	"github.com/abdul-hamid-achik/hitcase/packages/core/config"
	"github.com/abdul-hamid-achik/hitcase/packages/output"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate a shell completion script for hitcase.

Besides commands and flags, the scripts complete --case and --env values
from the catalog given with --catalog or the config file.

Examples:
  source <(hitcase completion bash)
  hitcase completion zsh > "${fpath[1]}/_hitcase"
  hitcase completion fish > ~/.config/fish/completions/hitcase.fish
  hitcase completion powershell | Out-String | Invoke-Expression`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletionV2(out, true)
		case "zsh":
			return cmd.Root().GenZshCompletion(out)
		case "fish":
			return cmd.Root().GenFishCompletion(out, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

// registerRunCompletions wires value completion for run's flags. It must
// run after the flags are defined.
func registerRunCompletions() {
	_ = runCmd.RegisterFlagCompletionFunc("output", fixedCompletion(output.Formats...))
	_ = runCmd.RegisterFlagCompletionFunc("notify-on", fixedCompletion("always", "failure", "success", "recovery"))
	_ = runCmd.RegisterFlagCompletionFunc("case", completeTestCases)
	_ = runCmd.RegisterFlagCompletionFunc("env", completeEnvironments)
}

func fixedCompletion(values ...string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return values, cobra.ShellCompDirectiveNoFileComp
	}
}

// completionCatalog loads the catalog named by --catalog or the config
// file. Completion stays silent on any error.
func completionCatalog() *catalog.Catalog {
	path := runFlags.catalogPath
	if path == "" {
		cfg, err := config.LoadConfig(runFlags.configPath)
		if err != nil {
			return nil
		}
		path = cfg.Catalog
	}
	if path == "" {
		return nil
	}
	c, err := catalog.Load(path)
	if err != nil {
		return nil
	}
	return c
}

// completeTestCases offers "id<TAB>name" for the test cases of --project,
// or of every project when none is given.
func completeTestCases(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	c := completionCatalog()
	if c == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var completions []string
	for _, p := range c.Projects {
		if projectFlag > 0 && p.ID != projectFlag {
			continue
		}
		for _, tc := range p.TestCases {
			completions = append(completions, fmt.Sprintf("%d\t%s", tc.ID, tc.Name))
		}
	}
	return completions, cobra.ShellCompDirectiveNoFileComp
}

// completeEnvironments offers the environment codes of --project.
func completeEnvironments(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	c := completionCatalog()
	if c == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	p, ok := c.Project(projectFlag)
	if !ok {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	completions := make([]string, 0, len(p.Environments))
	for _, e := range p.Environments {
		completions = append(completions, fmt.Sprintf("%s\t%s (%s)", e.Code, e.Name, e.BaseURL))
	}
	return completions, cobra.ShellCompDirectiveNoFileComp
}
