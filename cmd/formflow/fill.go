package main

import (
	"github.com/aretw0/formflow/internal/cli"
	"github.com/spf13/cobra"
)

// fillCmd represents the fill command
var fillCmd = &cobra.Command{
	Use:   "fill <form-id>",
	Short: "Answer a form interactively in the terminal",
	Long: `Walks through the visible sections of a form, validating each answer as it is
typed. Type :back to return to the previous section and :quit to stop; the session
is saved and can be resumed with --session.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.FillOptions{FormID: args[0]}
		opts.SessionID, _ = cmd.Flags().GetString("session")
		opts.ScopeID, _ = cmd.Flags().GetString("activity")
		opts.Fresh, _ = cmd.Flags().GetBool("fresh")
		opts.Debug, _ = cmd.Flags().GetBool("debug")
		opts.Plain, _ = cmd.Flags().GetBool("plain")
		if opts.ScopeID != "" {
			opts.ScopeKind = "activity"
		}
		return cli.RunFill(cfg, opts)
	},
}

func init() {
	rootCmd.AddCommand(fillCmd)

	fillCmd.Flags().StringP("session", "s", "", "Session id to resume")
	fillCmd.Flags().String("activity", "", "Register for an activity instead of the form itself")
	fillCmd.Flags().Bool("fresh", false, "Discard the stored session before starting")
	fillCmd.Flags().Bool("debug", false, "Log engine events to stderr")
	fillCmd.Flags().Bool("plain", false, "Disable the banner and Markdown rendering")
}
