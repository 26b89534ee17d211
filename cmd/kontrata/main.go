package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kontrata",
		Short: "KontrataPH - conversational Philippine contract intake",
		Long: `KontrataPH collects contract details through conversation, checks them
against Philippine law rules and renders finished contracts.

  kontrata serve   Run the HTTP API
  kontrata chat    Talk to the engine from the terminal
  kontrata rules   Print the loaded law rules`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default ./config.yaml or ~/.kontrata/config.yaml)")
	root.AddCommand(newServeCmd(), newChatCmd(), newRulesCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
