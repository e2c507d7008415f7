// Command storefront runs the e-commerce API and its maintenance tasks.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	dev        bool
}

func newRootCmd() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:          "storefront",
		Short:        "E-commerce REST backend",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().BoolVar(&g.dev, "dev", false, "use an embedded Redis and the in-memory store")

	root.AddCommand(newServeCmd(&g), newSeedAdminCmd(&g), newAccountStatusCmd(&g))
	return root
}
