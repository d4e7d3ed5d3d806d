package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-attendance",
	Short: "Face recognition attendance with blink and head-turn liveness checks",
	Long: `Face Attendance watches a camera, recognises people from a directory of
reference photos and records each person once per day after they pass a
liveness challenge: blink, then turn the head in a randomly chosen direction.

Face detection, embeddings and landmarks come from an external face-analysis
service (FACE_SERVICE_URL). Attendance is written to a CSV file by default, or
to PostgreSQL or MariaDB (LEDGER_BACKEND).`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("log-level", "", "Log level (overrides LOG_LEVEL)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
