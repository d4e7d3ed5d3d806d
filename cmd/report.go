package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/ledger"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show who was marked present on a day",
	Long: `Show the attendance records of one day from the configured ledger.

Examples:
  face-attendance report
  face-attendance report --date 05-03-24 --json`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("date", "", "Day to report as DD-MM-YY (default today)")
	reportCmd.Flags().Bool("json", false, "Output as JSON")
}

// ReportOutput is the JSON form of report.
type ReportOutput struct {
	Date    string          `json:"date"`
	Count   int             `json:"count"`
	Records []ledger.Record `json:"records"`
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	date := mustGetString(cmd, "date")
	if date == "" {
		date = time.Now().Format(ledger.DateLayout)
	} else if _, err := time.Parse(ledger.DateLayout, date); err != nil {
		return fmt.Errorf("invalid --date %q, expected DD-MM-YY", date)
	}

	ctx := cmd.Context()
	store, closeStore, err := openLedgerStore(ctx, cfg, uuid.Nil)
	if err != nil {
		return fmt.Errorf("opening attendance ledger: %w", err)
	}
	defer closeStore()

	records, err := ledger.StoreReader{Store: store}.RecordsForDate(ctx, date)
	if err != nil {
		return err
	}
	if records == nil {
		records = []ledger.Record{}
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(ReportOutput{Date: date, Count: len(records), Records: records})
	}

	if len(records) == 0 {
		fmt.Printf("No attendance recorded on %s\n", date)
		return nil
	}
	fmt.Printf("Attendance on %s (%d):\n", date, len(records))
	for _, rec := range records {
		fmt.Printf("  %s  %s\n", rec.Time, rec.Name)
	}
	return nil
}

// outputJSON outputs data as formatted JSON.
func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
