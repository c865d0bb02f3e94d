package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lugondev/go-cash/internal/client"
	"github.com/lugondev/go-cash/internal/node"
	"github.com/lugondev/go-cash/internal/runtime"
	"github.com/lugondev/go-cash/pkg/types"
)

var ammCmd = &cobra.Command{
	Use:   "amm",
	Short: "AMM provisioning commands",
}

var ammCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an AMM",
	Long: `Create an AMM administered by the --admin keypair. The AMM address is
derived from --id, which defaults to a fresh random key.

Example:
  cash amm create --admin admin.json --liquidity-fee 30 --protocol-fee 1000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		admin, err := loadWallet(cmd, "admin")
		if err != nil {
			return err
		}
		id := client.NewWallet().PublicKey()
		if cmd.Flags().Changed("id") {
			if id, err = pubkeyFlag(cmd, "id"); err != nil {
				return err
			}
		}
		liquidityFee, _ := cmd.Flags().GetUint16("liquidity-fee")
		protocolFee, _ := cmd.Flags().GetUint16("protocol-fee")

		return withNode(cmd, func(ctx context.Context, n *node.Node) error {
			amm, receipt, err := n.Client().CreateAmm(ctx, admin, id, liquidityFee, protocolFee)
			printReceipt(cmd, receipt)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "AMM: %s\n", amm)
			return nil
		})
	},
}

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Pool provisioning and inspection commands",
}

var poolCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the base lending pool for an AMM and mint",
	RunE: func(cmd *cobra.Command, args []string) error {
		return provision(cmd, (*client.Client).CreatePool)
	},
}

var poolCreateCashCmd = &cobra.Command{
	Use:   "create-cash",
	Short: "Create the cash pool for an existing base pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		return provision(cmd, (*client.Client).CreateCashPool)
	},
}

var poolShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show pool supplies and check their invariants",
	RunE: func(cmd *cobra.Command, args []string) error {
		amm, mint, err := poolFlags(cmd)
		if err != nil {
			return err
		}
		return withNode(cmd, func(ctx context.Context, n *node.Node) error {
			stats, err := n.Client().PoolStats(amm, mint)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(stats); err != nil {
				return err
			}
			if err := enc.Close(); err != nil {
				return err
			}
			if err := stats.Check(); err != nil {
				return fmt.Errorf("pool invariants violated: %w", err)
			}
			return nil
		})
	},
}

type provisionFunc func(c *client.Client, ctx context.Context, payer *client.Wallet, amm, mint types.Pubkey) (*runtime.Receipt, error)

func provision(cmd *cobra.Command, create provisionFunc) error {
	payer, err := loadWallet(cmd, "payer")
	if err != nil {
		return err
	}
	amm, mint, err := poolFlags(cmd)
	if err != nil {
		return err
	}
	return withNode(cmd, func(ctx context.Context, n *node.Node) error {
		receipt, err := create(n.Client(), ctx, payer, amm, mint)
		printReceipt(cmd, receipt)
		return err
	})
}

func poolFlags(cmd *cobra.Command) (amm, mint types.Pubkey, err error) {
	if amm, err = pubkeyFlag(cmd, "amm"); err != nil {
		return
	}
	mint, err = pubkeyFlag(cmd, "mint")
	return
}

func addPoolFlags(cmd *cobra.Command) {
	cmd.Flags().String("amm", "", "AMM address (required)")
	cmd.Flags().String("mint", "", "base asset mint (required)")
}

func init() {
	rootCmd.AddCommand(ammCmd, poolCmd)
	ammCmd.AddCommand(ammCreateCmd)
	poolCmd.AddCommand(poolCreateCmd, poolCreateCashCmd, poolShowCmd)

	ammCreateCmd.Flags().String("admin", "", "administrator keypair file (required)")
	ammCreateCmd.Flags().String("id", "", "AMM id the address is derived from")
	ammCreateCmd.Flags().Uint16("liquidity-fee", 0, "liquidity fee in basis points")
	ammCreateCmd.Flags().Uint16("protocol-fee", 0, "protocol share of the fee in basis points")

	for _, c := range []*cobra.Command{poolCreateCmd, poolCreateCashCmd} {
		c.Flags().String("payer", "", "fee payer keypair file (required); the AMM admin need not sign")
		addPoolFlags(c)
	}
	addPoolFlags(poolShowCmd)
}
