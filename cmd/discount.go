package cmd

import (
	"fmt"
	"time"

	"github.com/nashr-app/nashr/internal/discount"
	"github.com/nashr-app/nashr/internal/engine"
	"github.com/spf13/cobra"
)

var discountCreateFlags struct {
	Type         string
	Value        int64
	MaxDiscount  int64
	MinPurchase  int64
	UsageLimit   int
	PerUserLimit int
	FileID       uint
	Description  string
	ValidFor     time.Duration
}

var discountCmd = &cobra.Command{
	Use:   "discount",
	Short: "Manage discount codes",
}

var discountCreateCmd = &cobra.Command{
	Use:   "create <code>",
	Short: "Create a discount code",
	Example: `nashr discount create NOWRUZ --type percentage --value 30 --max-discount 50000
nashr discount create GIFT --type free --file 3 --usage-limit 10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := engine.DiscountInput{
			Code:         args[0],
			Description:  discountCreateFlags.Description,
			Type:         discount.Type(discountCreateFlags.Type),
			Value:        discountCreateFlags.Value,
			MaxDiscount:  discountCreateFlags.MaxDiscount,
			MinPurchase:  discountCreateFlags.MinPurchase,
			UsageLimit:   discountCreateFlags.UsageLimit,
			PerUserLimit: discountCreateFlags.PerUserLimit,
		}
		if discountCreateFlags.FileID > 0 {
			in.FileID = &discountCreateFlags.FileID
		}
		if discountCreateFlags.ValidFor > 0 {
			until := time.Now().Add(discountCreateFlags.ValidFor)
			in.ValidUntil = &until
		}

		return withEngine(func(e *engine.Engine) error {
			code, err := e.CreateDiscountCode(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("failed to create discount code: %w", err)
			}
			fmt.Printf("Created discount code %s (%s %d)\n", code.Code, code.Type, code.Value)
			return nil
		})
	},
}

func init() {
	f := discountCreateCmd.Flags()
	f.StringVar(&discountCreateFlags.Type, "type", string(discount.TypePercentage), "Discount type (percentage, fixed, free)")
	f.Int64Var(&discountCreateFlags.Value, "value", 0, "Percentage or amount in toman")
	f.Int64Var(&discountCreateFlags.MaxDiscount, "max-discount", 0, "Upper bound of a percentage discount, 0 for none")
	f.Int64Var(&discountCreateFlags.MinPurchase, "min-purchase", 0, "Minimum file price the code applies to")
	f.IntVar(&discountCreateFlags.UsageLimit, "usage-limit", 0, "Total number of uses, 0 for unlimited")
	f.IntVar(&discountCreateFlags.PerUserLimit, "per-user-limit", 1, "Uses per user, 0 for unlimited")
	f.UintVar(&discountCreateFlags.FileID, "file", 0, "Restrict the code to one file")
	f.StringVar(&discountCreateFlags.Description, "description", "", "Internal note")
	f.DurationVar(&discountCreateFlags.ValidFor, "valid-for", 0, "How long the code stays valid, 0 for no expiry")

	discountCmd.AddCommand(discountCreateCmd)
	rootCmd.AddCommand(discountCmd)
}
