package main

import (
	"fmt"
	"os"

	"github.com/aretw0/formflow/internal/cli"
	"github.com/aretw0/formflow/internal/logging"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage stored wizard sessions",
	Long:  `List, inspect, and remove the sessions kept by the configured session backend.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := cli.Build(cmd.Context(), cfg, logging.NewNop())
		if err != nil {
			return err
		}
		defer rt.Close()
		return cli.ListSessions(cmd.Context(), rt.Sessions, os.Stdout)
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Inspect the state of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asGraph, _ := cmd.Flags().GetBool("graph")
		rt, err := cli.Build(cmd.Context(), cfg, logging.NewNop())
		if err != nil {
			return err
		}
		defer rt.Close()

		if asGraph {
			return cli.InspectSession(cmd.Context(), rt.Sessions, rt.Engine.Definitions(), args[0], os.Stdout)
		}
		return cli.InspectSession(cmd.Context(), rt.Sessions, nil, args[0], os.Stdout)
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args: func(cmd *cobra.Command, args []string) error {
		if all, _ := cmd.Flags().GetBool("all"); all {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		rt, err := cli.Build(cmd.Context(), cfg, logging.NewNop())
		if err != nil {
			return err
		}
		defer rt.Close()

		failed, err := cli.RemoveSessions(cmd.Context(), rt.Sessions, args, all, os.Stdout)
		if err != nil {
			return err
		}
		if len(failed) > 0 {
			return fmt.Errorf("failed to remove %d session(s)", len(failed))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)

	sessionInspectCmd.Flags().Bool("graph", false, "Print the form graph with the session progress instead of JSON")
	sessionRmCmd.Flags().Bool("all", false, "Remove every stored session")
}
