package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lugondev/go-cash/internal/client"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Wallet management commands",
	Long:  `Commands for generating and inspecting keypair files.`,
}

var walletNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Generate a new wallet",
	Long:  `Generate a new keypair, optionally saving it in the Solana CLI JSON format.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := client.NewWallet()
		out := cmd.OutOrStdout()

		path, _ := cmd.Flags().GetString("out")
		if path != "" {
			if err := w.SaveToFile(path); err != nil {
				return err
			}
			fmt.Fprintf(out, "Public Key: %s\n", w.PublicKey())
			fmt.Fprintf(out, "Saved to:   %s\n", path)
			return nil
		}

		fmt.Fprintln(out, "New wallet generated!")
		fmt.Fprintf(out, "  Public Key:  %s\n", w.PublicKey())
		fmt.Fprintf(out, "  Private Key: %s\n", w.PrivateKey())
		fmt.Fprintln(out, "\nWARNING: Save your private key securely. Never share it with anyone!")
		return nil
	},
}

var walletShowCmd = &cobra.Command{
	Use:   "show [keypair-file]",
	Short: "Show the public key of a keypair file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := client.WalletFromFile(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), w.PublicKey())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(walletNewCmd)
	walletCmd.AddCommand(walletShowCmd)

	walletNewCmd.Flags().StringP("out", "o", "", "write the keypair to this file")
}

func loadWallet(cmd *cobra.Command, flag string) (*client.Wallet, error) {
	path, err := cmd.Flags().GetString(flag)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("--%s is required", flag)
	}
	return client.WalletFromFile(path)
}
