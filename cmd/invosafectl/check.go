package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check INVOICE_ID",
	Short: "List every visible copy of an invoice id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		invoices, err := newClient().FindInvoices(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LENDER\tINVOICE\tSTATUS\tAMOUNT\tCREATED")
		for i := range invoices {
			inv := &invoices[i]
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
				inv.LenderID, inv.InvoiceID, inv.DisplayStatus(), inv.InvoiceAmount.StringFixed(2), timestamp(inv.CreatedAt))
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
