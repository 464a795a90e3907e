// Command dbmeta collects schema metadata from every database on a server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd(exit *int) *cobra.Command {
	root := &cobra.Command{
		Use:           "dbmeta",
		Short:         "Collect schema metadata from every database on a server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "Path to a YAML config file")

	root.AddCommand(newCollectCmd(exit))
	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func main() {
	code := 0
	if err := newRootCmd(&code).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dbmeta:", err)
		os.Exit(1)
	}
	os.Exit(code)
}
