package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/punchamoorthee/invosafe/internal/auth"
	"github.com/punchamoorthee/invosafe/internal/client"
	"github.com/punchamoorthee/invosafe/internal/domain"
	"github.com/punchamoorthee/invosafe/internal/logger"
	"github.com/punchamoorthee/invosafe/internal/reconcile"
	"github.com/spf13/cobra"
)

var bulkCmd = &cobra.Command{
	Use:   "bulk-update FILE",
	Short: "Apply a csv or xlsx reconciliation file row by row",
	Long: `Reads a csv or xlsx file and applies one lifecycle operation to every
row through the API. Rows are reported individually; a failing row never
stops the batch.

Admin tokens must pass --lender; invoice ids are only unique per lender.`,
	Example: `  # Finance every invoice in a spreadsheet
  invosafectl bulk-update --operation finance financed.xlsx

  # Reject rows four at a time and print the report as JSON
  invosafectl bulk-update --operation reject --concurrency 4 --json rejected.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runBulk,
}

func init() {
	rootCmd.AddCommand(bulkCmd)

	bulkCmd.Flags().StringP("operation", "o", "", "finance, reject or repaid")
	bulkCmd.Flags().Int("concurrency", 1, "Rows in flight")
	bulkCmd.Flags().Duration("row-delay", 0, "Pause after each row")
	bulkCmd.Flags().Bool("json", false, "Print the report as JSON")
	_ = bulkCmd.MarkFlagRequired("operation")
}

func runBulk(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("bulk-update")

	opName, _ := cmd.Flags().GetString("operation")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	rowDelay, _ := cmd.Flags().GetDuration("row-delay")
	asJSON, _ := cmd.Flags().GetBool("json")

	op, err := reconcile.ParseOperation(opName)
	if err != nil {
		return err
	}
	if lenderID == 0 {
		if claims, err := auth.PeekClaims(apiToken); err == nil && domain.Role(claims.Role) == domain.RoleAdmin {
			return errors.New("--lender is required for admin tokens")
		}
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	batch, err := reconcile.Parse(filepath.Base(args[0]), f, op)
	if err != nil {
		return err
	}
	log.Info().Str("file", args[0]).Str("operation", string(op)).Int("rows", len(batch.Rows)).Msg("Batch parsed")

	target := client.NewBulkTarget(newClient(), lenderID)
	engine := reconcile.NewEngine(target, reconcile.Options{Concurrency: concurrency, RowDelay: rowDelay})
	report := engine.Run(cmd.Context(), batch)

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tINVOICE\tSTATUS\tMESSAGE")
	for _, r := range report.Results {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.Row, r.InvoiceID, r.Status, r.Message)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d succeeded, %d failed\n", report.SuccessCount, report.ErrorCount)
	return nil
}
