package cmd

import (
	"fmt"

	"github.com/nashr-app/nashr/internal/engine"
	"github.com/spf13/cobra"
)

var bankCardAddFlags struct {
	HolderName string
	BankName   string
	IBAN       string
	SortOrder  int
}

var bankCardCmd = &cobra.Command{
	Use:   "bank-card",
	Short: "Manage the cards buyers transfer money to",
}

var bankCardAddCmd = &cobra.Command{
	Use:   "add <card-number>",
	Short: "Add a destination card",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(e *engine.Engine) error {
			card, err := e.CreateBankCard(cmd.Context(), engine.BankCardInput{
				CardNumber: args[0],
				HolderName: bankCardAddFlags.HolderName,
				BankName:   bankCardAddFlags.BankName,
				IBAN:       bankCardAddFlags.IBAN,
				SortOrder:  bankCardAddFlags.SortOrder,
			})
			if err != nil {
				return fmt.Errorf("failed to add bank card: %w", err)
			}
			fmt.Printf("Added bank card %d: %s\n", card.ID, card.CardNumber)
			return nil
		})
	},
}

func init() {
	bankCardAddCmd.Flags().StringVar(&bankCardAddFlags.HolderName, "holder", "", "Name of the card holder")
	bankCardAddCmd.Flags().StringVar(&bankCardAddFlags.BankName, "bank", "", "Name of the bank")
	bankCardAddCmd.Flags().StringVar(&bankCardAddFlags.IBAN, "iban", "", "Sheba number of the account")
	bankCardAddCmd.Flags().IntVar(&bankCardAddFlags.SortOrder, "sort-order", 0, "Position of the card in the list")
	_ = bankCardAddCmd.MarkFlagRequired("holder")

	bankCardCmd.AddCommand(bankCardAddCmd)
	rootCmd.AddCommand(bankCardCmd)
}
