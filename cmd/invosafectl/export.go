package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/punchamoorthee/invosafe/internal/domain"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download a lender's invoices as csv or xlsx",
	Example: `  # Financed invoices to a spreadsheet
  invosafectl export --status 1 --format xlsx --out financed.xlsx`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("format", "csv", "csv or xlsx")
	exportCmd.Flags().String("status", "", "Only invoices with this status code")
	exportCmd.Flags().String("out", "", "Output file (default stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	statusFlag, _ := cmd.Flags().GetString("status")
	outPath, _ := cmd.Flags().GetString("out")

	if format != "csv" && format != "xlsx" {
		return fmt.Errorf("format must be csv or xlsx")
	}

	var status *domain.Status
	if statusFlag != "" {
		n, err := strconv.Atoi(statusFlag)
		if err != nil || !domain.Status(n).Valid() {
			return fmt.Errorf("invalid status %q", statusFlag)
		}
		s := domain.Status(n)
		status = &s
	}

	var w io.Writer = cmd.OutOrStdout()
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return newClient().Export(cmd.Context(), lenderID, status, format, w)
}
