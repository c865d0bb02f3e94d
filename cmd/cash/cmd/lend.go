package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lugondev/go-cash/internal/client"
	"github.com/lugondev/go-cash/internal/node"
	"github.com/lugondev/go-cash/internal/runtime"
	"github.com/lugondev/go-cash/pkg/types"
)

var lendCmd = &cobra.Command{
	Use:   "lend",
	Short: "Lock base asset for receipt tokens and cash",
	Long: `Lock --amount of the base asset in the pool. The lender receives receipt
tokens one for one and cash at 100/120 of the amount, rounded down.

Example:
  cash lend --wallet lender.json --amm <AMM> --mint <MINT> --amount 1.2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return lend(cmd, false, (*client.Client).Lend)
	},
}

var redeemCmd = &cobra.Command{
	Use:   "redeem",
	Short: "Return cash and receipt tokens for the locked base asset",
	RunE: func(cmd *cobra.Command, args []string) error {
		return redeem(cmd, (*client.Client).Redeem)
	},
}

var lendCashCmd = &cobra.Command{
	Use:   "lend-cash",
	Short: "Lock cash in the cash pool for scash",
	RunE: func(cmd *cobra.Command, args []string) error {
		return lend(cmd, true, (*client.Client).LendCash)
	},
}

var redeemCashCmd = &cobra.Command{
	Use:   "redeem-cash",
	Short: "Return scash for the locked cash",
	RunE: func(cmd *cobra.Command, args []string) error {
		return redeem(cmd, (*client.Client).RedeemCash)
	},
}

type lendFunc func(c *client.Client, ctx context.Context, lender *client.Wallet, amm, mint types.Pubkey, amount uint64) (*runtime.Receipt, error)

type redeemFunc func(c *client.Client, ctx context.Context, lender *client.Wallet, amm, mint types.Pubkey) (*runtime.Receipt, error)

// lend parses --amount in the units of the asset being locked: the base
// mint, or the pool's cash mint when cash is set.
func lend(cmd *cobra.Command, cash bool, fn lendFunc) error {
	lender, err := loadWallet(cmd, "wallet")
	if err != nil {
		return err
	}
	amm, mint, err := poolFlags(cmd)
	if err != nil {
		return err
	}
	return withNode(cmd, func(ctx context.Context, n *node.Node) error {
		c := n.Client()
		unit := mint
		if cash {
			set, err := c.Deriver().PoolSet(amm, mint)
			if err != nil {
				return err
			}
			unit = set.CashMint.Address
		}
		amount, err := amountFlag(cmd, c, unit)
		if err != nil {
			return err
		}
		receipt, err := fn(c, ctx, lender, amm, mint, amount)
		printReceipt(cmd, receipt)
		return err
	})
}

func redeem(cmd *cobra.Command, fn redeemFunc) error {
	lender, err := loadWallet(cmd, "wallet")
	if err != nil {
		return err
	}
	amm, mint, err := poolFlags(cmd)
	if err != nil {
		return err
	}
	return withNode(cmd, func(ctx context.Context, n *node.Node) error {
		receipt, err := fn(n.Client(), ctx, lender, amm, mint)
		printReceipt(cmd, receipt)
		return err
	})
}

func init() {
	for _, c := range []*cobra.Command{lendCmd, redeemCmd, lendCashCmd, redeemCashCmd} {
		rootCmd.AddCommand(c)
		c.Flags().String("wallet", "", "lender keypair file (required)")
		addPoolFlags(c)
	}
	lendCmd.Flags().String("amount", "", "base asset amount in UI units (required)")
	lendCashCmd.Flags().String("amount", "", "cash amount in UI units (required)")
}
