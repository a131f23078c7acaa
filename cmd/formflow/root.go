package main

import (
	"fmt"
	"os"

	"github.com/aretw0/formflow/internal/config"
	"github.com/spf13/cobra"
)

// cfg is loaded before any command runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "formflow",
	Short: "formflow is a dynamic multi-section form engine",
	Long: `formflow serves declarative forms: sections that appear and disappear with
the answers, option jumps, asynchronous uniqueness checks and scoped submissions.

Settings come from FORMFLOW_* environment variables (and an optional .env file);
flags override them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		var files []string
		if envFile != "" {
			files = append(files, envFile)
		}
		loaded, err := config.Load(files...)
		if err != nil {
			return err
		}
		applyFlags(cmd, loaded)
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.String("env-file", "", "Dotenv file to load (default .env)")
	flags.String("dir", "", "Directory containing the form definitions (FORMFLOW_FORMS_DIR)")
	flags.String("loader", "", "Definition loader: file or loam (FORMFLOW_LOADER)")
	flags.String("data-dir", "", "Directory for sessions, uploads and the sqlite database (FORMFLOW_DATA_DIR)")
	flags.String("sessions", "", "Session backend: memory, file or redis (FORMFLOW_SESSION_BACKEND)")
	flags.String("submissions", "", "Submission backend: memory, redis or sqlite (FORMFLOW_SUBMISSION_BACKEND)")
	flags.String("redis-url", "", "Redis URL (FORMFLOW_REDIS_URL)")
	flags.String("log-level", "", "Log level: debug, info, warn or error (FORMFLOW_LOG_LEVEL)")
}

// applyFlags overrides configuration with the flags set on the command line.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	override := func(name string, dst *string) {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}
	override("dir", &c.FormsDir)
	override("loader", &c.Loader)
	override("data-dir", &c.DataDir)
	override("sessions", &c.SessionBackend)
	override("submissions", &c.SubmissionBackend)
	override("redis-url", &c.RedisURL)
	override("log-level", &c.LogLevel)
	override("addr", &c.Addr)

	if cmd.Flags().Changed("data-dir") {
		if os.Getenv(config.Prefix+"SQLITE_PATH") == "" {
			c.SQLitePath = ""
		}
		if os.Getenv(config.Prefix+"UPLOAD_DIR") == "" {
			c.UploadDir = ""
		}
		c.ApplyDefaults()
	}
}
