package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/punchamoorthee/invosafe/internal/models"
	"github.com/spf13/cobra"
)

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Show the API credit balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient().Credits(cmd.Context(), lenderID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "lender %d: %d available (%d total, %d used)\n",
			c.LenderID, c.Available(), c.TotalCredits, c.UsedCredits)
		return nil
	},
}

var transactionsCmd = &cobra.Command{
	Use:   "transactions",
	Short: "List credit ledger entries, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		txs, err := newClient().Transactions(cmd.Context(), lenderID)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tWHEN\tTYPE\tCHANGE\tBALANCE\tDESCRIPTION")
		for _, t := range txs {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%+d\t%d\t%s\n",
				t.ID, timestamp(t.CreatedAt), t.TransactionType, t.CreditsChange, t.BalanceAfter, t.Description)
		}
		return tw.Flush()
	},
}

var purchaseCmd = &cobra.Command{
	Use:   "purchase",
	Short: "Buy API credits",
	Long: `Buys credits for a lender. Every call carries an Idempotency-Key; pass
--key to retry a purchase safely, otherwise a fresh key is generated.`,
	Example: `  invosafectl credits purchase --amount 500 --key order-2024-17`,
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, _ := cmd.Flags().GetInt64("amount")
		description, _ := cmd.Flags().GetString("description")
		key, _ := cmd.Flags().GetString("key")
		if amount <= 0 {
			return fmt.Errorf("amount must be positive")
		}
		if key == "" {
			key = uuid.NewString()
		}

		resp, err := newClient().Purchase(cmd.Context(), models.PurchaseRequest{
			LenderID:      lenderID,
			CreditsAmount: amount,
			Description:   description,
		}, key)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "transaction %d: %+d credits, %d available (key %s)\n",
			resp.Transaction.ID, resp.Transaction.CreditsChange, resp.Credits.Available(), key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(creditsCmd)
	creditsCmd.AddCommand(transactionsCmd, purchaseCmd)

	purchaseCmd.Flags().Int64("amount", 0, "Credits to buy")
	purchaseCmd.Flags().String("description", "", "Ledger description")
	purchaseCmd.Flags().String("key", "", "Idempotency key")
}
