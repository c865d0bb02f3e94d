package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lugondev/go-cash/internal/cash"
	"github.com/lugondev/go-cash/internal/client"
	"github.com/lugondev/go-cash/internal/node"
	"github.com/lugondev/go-cash/pkg/types"
	"github.com/lugondev/go-cash/pkg/utils"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Token mint and balance commands",
}

var tokenCreateMintCmd = &cobra.Command{
	Use:   "create-mint",
	Short: "Create a token mint",
	Long: `Create a mint whose supply is controlled by the --authority keypair.

Example:
  cash token create-mint --authority admin.json --out usdc.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		authority, err := loadWallet(cmd, "authority")
		if err != nil {
			return err
		}
		decimals, _ := cmd.Flags().GetUint8("decimals")

		mint := client.NewWallet()
		if path, _ := cmd.Flags().GetString("out"); path != "" {
			if err := mint.SaveToFile(path); err != nil {
				return err
			}
		}

		return withNode(cmd, func(ctx context.Context, n *node.Node) error {
			receipt, err := n.Client().CreateMint(ctx, mint, decimals, authority.PublicKey(), types.Pubkey{})
			printReceipt(cmd, receipt)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Mint: %s\n", mint.PublicKey())
			return nil
		})
	},
}

var tokenMintToCmd = &cobra.Command{
	Use:   "mint-to",
	Short: "Mint tokens to an owner's associated account",
	RunE: func(cmd *cobra.Command, args []string) error {
		authority, err := loadWallet(cmd, "authority")
		if err != nil {
			return err
		}
		mint, err := pubkeyFlag(cmd, "mint")
		if err != nil {
			return err
		}
		owner, err := pubkeyFlag(cmd, "to")
		if err != nil {
			return err
		}

		return withNode(cmd, func(ctx context.Context, n *node.Node) error {
			amount, err := amountFlag(cmd, n.Client(), mint)
			if err != nil {
				return err
			}
			receipt, err := n.Client().MintTo(ctx, authority, mint, owner, amount)
			printReceipt(cmd, receipt)
			return err
		})
	},
}

var tokenBalanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show an owner's balance of a mint",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := pubkeyFlag(cmd, "owner")
		if err != nil {
			return err
		}
		mint, err := pubkeyFlag(cmd, "mint")
		if err != nil {
			return err
		}

		return withNode(cmd, func(ctx context.Context, n *node.Node) error {
			m, err := n.Client().Mint(mint)
			if err != nil {
				return err
			}
			balance, err := n.Client().Balance(owner, mint)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), utils.FormatAmount(balance, m.Decimals))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenCreateMintCmd, tokenMintToCmd, tokenBalanceCmd)

	tokenCreateMintCmd.Flags().String("authority", "", "mint authority keypair file (required)")
	tokenCreateMintCmd.Flags().Uint8("decimals", cash.MintDecimals, "mint decimals")
	tokenCreateMintCmd.Flags().StringP("out", "o", "", "write the mint keypair to this file")

	tokenMintToCmd.Flags().String("authority", "", "mint authority keypair file (required)")
	tokenMintToCmd.Flags().String("mint", "", "mint address (required)")
	tokenMintToCmd.Flags().String("to", "", "owner address (required)")
	tokenMintToCmd.Flags().String("amount", "", "amount in UI units, e.g. 1.5 (required)")

	tokenBalanceCmd.Flags().String("owner", "", "owner address (required)")
	tokenBalanceCmd.Flags().String("mint", "", "mint address (required)")
}

// amountFlag parses --amount in the mint's UI units.
func amountFlag(cmd *cobra.Command, c *client.Client, mint types.Pubkey) (uint64, error) {
	raw, err := cmd.Flags().GetString("amount")
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, fmt.Errorf("--amount is required")
	}
	m, err := c.Mint(mint)
	if err != nil {
		return 0, err
	}
	return utils.ParseAmount(raw, m.Decimals)
}
