package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lugondev/go-cash/internal/common"
	"github.com/lugondev/go-cash/internal/config"
	"github.com/lugondev/go-cash/internal/node"
	"github.com/lugondev/go-cash/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the node and serve it over HTTP",
	Long: `Run the node with its journal pipeline and serve pool figures, account
reads, address derivation and transaction submission over HTTP until
interrupted.

Example:
  cash serve --ledger ./data/ledger --addr :8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		cmd.SetContext(ctx)

		return withNode(cmd, func(ctx context.Context, n *node.Node) error {
			cfg := n.Config()
			logger, err := common.NewLogger(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return server.New(n, cfg.Server, logger).ListenAndServe(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", config.DefaultConfig().Server.Addr, "listen address")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}
