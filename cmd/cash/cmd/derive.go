package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lugondev/go-cash/internal/authority"
	"github.com/lugondev/go-cash/internal/node"
)

type derivedAddress struct {
	Address string `yaml:"address"`
	Bump    uint8  `yaml:"bump"`
}

func derived(d authority.Derived) derivedAddress {
	return derivedAddress{Address: d.Address.String(), Bump: d.Bump}
}

type poolAddresses struct {
	Pool        derivedAddress `yaml:"pool"`
	CashPool    derivedAddress `yaml:"cash_pool"`
	Authority   derivedAddress `yaml:"authority"`
	ReceiptMint derivedAddress `yaml:"receipt_mint"`
	CashMint    derivedAddress `yaml:"cash_mint"`
	ScashMint   derivedAddress `yaml:"scash_mint"`
	BaseCustody derivedAddress `yaml:"base_custody"`
	CashCustody derivedAddress `yaml:"cash_custody"`

	Lender *lenderAddresses `yaml:"lender,omitempty"`
}

type lenderAddresses struct {
	Authority    derivedAddress `yaml:"authority"`
	ReceiptSlot  derivedAddress `yaml:"receipt_slot"`
	BaseAccount  derivedAddress `yaml:"base_account"`
	CashAccount  derivedAddress `yaml:"cash_account"`
	ScashAccount derivedAddress `yaml:"scash_account"`
}

var deriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Print the program-derived addresses of a pool",
	Long: `Print every address scoped to (--amm, --mint) and, with --lender, the
lender's authority and token accounts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		amm, mint, err := poolFlags(cmd)
		if err != nil {
			return err
		}
		return withNode(cmd, func(ctx context.Context, n *node.Node) error {
			d := n.Client().Deriver()
			set, err := d.PoolSet(amm, mint)
			if err != nil {
				return err
			}
			out := poolAddresses{
				Pool:        derived(set.Pool),
				CashPool:    derived(set.CashPool),
				Authority:   derived(set.Authority),
				ReceiptMint: derived(set.ReceiptMint),
				CashMint:    derived(set.CashMint),
				ScashMint:   derived(set.ScashMint),
				BaseCustody: derived(set.BaseCustody),
				CashCustody: derived(set.CashCustody),
			}
			if cmd.Flags().Changed("lender") {
				lender, err := pubkeyFlag(cmd, "lender")
				if err != nil {
					return err
				}
				ls, err := d.LenderSet(set, lender)
				if err != nil {
					return err
				}
				out.Lender = &lenderAddresses{
					Authority:    derived(ls.Authority),
					ReceiptSlot:  derived(ls.ReceiptSlot),
					BaseAccount:  derived(ls.BaseAccount),
					CashAccount:  derived(ls.CashAccount),
					ScashAccount: derived(ls.ScashAccount),
				}
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(out); err != nil {
				return err
			}
			return enc.Close()
		})
	},
}

func init() {
	rootCmd.AddCommand(deriveCmd)
	addPoolFlags(deriveCmd)
	deriveCmd.Flags().String("lender", "", "lender address")
}
