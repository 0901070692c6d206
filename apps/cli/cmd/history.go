package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitcase/packages/core/config"
	"github.com/abdul-hamid-achik/hitcase/packages/db"
	"github.com/abdul-hamid-achik/hitcase/packages/output"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded runs",
	Long: `Show runs recorded with --history, newest first.

Examples:
  hitcase history --history sqlite://runs.db
  hitcase history --history sqlite://runs.db --case 3 --limit 5 --output json`,
	Args: cobra.NoArgs,
	RunE: historyCommand,
}

var (
	historyDSN     string
	historyConfig  string
	historyCase    int64
	historyLimit   int
	historyOutput  string
	historyNoColor bool
)

func init() {
	historyCmd.Flags().StringVar(&historyDSN, "history", getEnvString("HITCASE_HISTORY", ""), "History database, e.g. sqlite://runs.db (env: HITCASE_HISTORY)")
	historyCmd.Flags().StringVar(&historyConfig, "config", getEnvString("HITCASE_CONFIG", ""), "Path to config file (env: HITCASE_CONFIG)")
	historyCmd.Flags().Int64VarP(&historyCase, "case", "c", 0, "Only runs of this test case id")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum runs to show, 0 = all")
	historyCmd.Flags().StringVarP(&historyOutput, "output", "o", "console", "Output format: console, json")
	historyCmd.Flags().BoolVar(&historyNoColor, "no-color", getEnvBool("HITCASE_NO_COLOR", false), "Disable colored output (env: HITCASE_NO_COLOR)")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(historyConfig)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	dsn := historyDSN
	if dsn == "" {
		dsn = cfg.History
	}
	if dsn == "" {
		return withExitCode(ExitUsageError, errors.New("no history database given (use --history or the config file)"))
	}

	client, err := db.NewClient(dsn)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	defer client.Close()

	runs, err := client.History(cmd.Context(), historyCase, historyLimit)
	if err != nil {
		return err
	}

	if historyOutput == "json" {
		return output.WriteJSON(cmd.OutOrStdout(), runs)
	}
	return output.NewConsoleFormatter(
		output.WithWriter(cmd.OutOrStdout()),
		output.WithNoColor(historyNoColor || cfg.GetNoColor()),
	).FormatHistory(runs)
}
