package main

import (
	"os"

	"github.com/aretw0/formflow/internal/cli"
	"github.com/aretw0/formflow/internal/logging"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <form-id>",
	Short: "Export the section graph of a form",
	Long: `Outputs a Mermaid diagram (graph TD) of a form: sections in order, option jumps,
conditional sections and the paths that submit. With --session, the sections the
respondent went through and the current one are highlighted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		logger := logging.NewNop()

		if sessionID == "" {
			defs, _, err := cli.NewDefinitions(cfg, logger)
			if err != nil {
				return err
			}
			return cli.Graph(cmd.Context(), defs, args[0], os.Stdout)
		}

		rt, err := cli.Build(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer rt.Close()
		return cli.InspectSession(cmd.Context(), rt.Sessions, rt.Engine.Definitions(), sessionID, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", "", "Overlay the progress of a stored session")
}
