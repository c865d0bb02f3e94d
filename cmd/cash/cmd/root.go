package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lugondev/go-cash/internal/common"
	"github.com/lugondev/go-cash/internal/config"
	"github.com/lugondev/go-cash/internal/node"
	"github.com/lugondev/go-cash/internal/runtime"
	"github.com/lugondev/go-cash/pkg/types"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cash",
	Short: "Cash CLI - collateralized lending on a local ledger",
	Long: `Cash lends a base asset into a pool for receipt tokens and cash, and
lends cash into a cash pool for scash.

It provides commands for:
- Wallet and token management
- Provisioning AMMs, pools and cash pools
- Lending and redeeming at both tiers
- Serving the node over HTTP`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.cash.yaml or $HOME/.cash.yaml)")
	defaults := config.DefaultConfig()
	rootCmd.PersistentFlags().String("ledger", defaults.Ledger.Path, "LevelDB ledger directory; setting it selects the LevelDB backend")
	rootCmd.PersistentFlags().String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")

	for key, flag := range map[string]string{
		"ledger.path": "ledger",
		"log.level":   "log-level",
	} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding flag: %v\n", err)
		}
	}
}

// loadConfig reads the config file, environment and flags. A ledger path
// given on the command line selects the LevelDB backend.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWith(viper.GetViper(), cfgFile)
	if err != nil {
		return nil, err
	}
	if rootCmd.PersistentFlags().Changed("ledger") {
		cfg.Ledger.Backend = "leveldb"
	}
	return cfg, nil
}

// withNode runs fn against a started node and closes it afterwards, which
// drains the journal.
func withNode(cmd *cobra.Command, fn func(ctx context.Context, n *node.Node) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := common.NewLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	n, err := node.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	n.Start(ctx)

	runErr := fn(ctx, n)
	if err := n.Close(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func pubkeyFlag(cmd *cobra.Command, name string) (types.Pubkey, error) {
	raw, err := cmd.Flags().GetString(name)
	if err != nil {
		return types.Pubkey{}, err
	}
	if raw == "" {
		return types.Pubkey{}, fmt.Errorf("--%s is required", name)
	}
	key, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return types.Pubkey{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return key, nil
}

func printReceipt(cmd *cobra.Command, receipt *runtime.Receipt) {
	if receipt == nil {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Signature: %s\n", receipt.Signature)
	fmt.Fprintf(out, "Slot:      %d\n", receipt.Slot)
	for _, line := range receipt.Logs {
		fmt.Fprintf(out, "  %s\n", line)
	}
}
