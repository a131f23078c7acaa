package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/formflow/internal/cli"
	"github.com/aretw0/formflow/internal/logging"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [form-id...]",
	Short: "Check form definitions for authoring mistakes",
	Long: `Loads every form (or the given ones) and reports structural errors, dangling or
backward jumps, rules that point at unknown or later fields, colliding storage keys
and other issues. Exits non-zero when any error is found.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		watch, _ := cmd.Flags().GetBool("watch")
		logger := logging.New(cfg.Level())

		defs, loader, err := cli.NewDefinitions(cfg, logger)
		if err != nil {
			return err
		}

		reports, err := cli.Lint(cmd.Context(), defs, args...)
		if err != nil {
			return err
		}
		failed := cli.PrintReports(os.Stdout, reports)

		if watch {
			if loader == nil {
				return errors.New("--watch requires the loam loader (--loader loam)")
			}
			ctx := cli.NewSignalContext(cmd.Context())
			defer ctx.Cancel()
			return cli.WatchDefinitions(ctx, loader, os.Stdout, logger)
		}
		if failed {
			return errors.New("validation failed")
		}
		fmt.Println("All forms are valid! ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolP("watch", "w", false, "Re-validate forms whenever their documents change")
}
