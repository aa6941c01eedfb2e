// Package main is the entry point for uaspace.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// ビルド時に -ldflags で上書きする
var (
	version = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "uaspace",
		Short: "OPC UA style address space server",
		Long: `uaspace - OPC UA style address space server

Serves an in-memory node graph with typed attributes and browsable
references. Information models are loaded from YAML/JSON files, the
address space can be snapshotted to disk, and historizing variables are
recorded to SQLite. An HTTP/JSON gateway exposes Read, Write, Browse and
node management, plus a websocket stream of address space events.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		benchCmd(),
		browseCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				fmt.Println(version)
				return
			}
			fmt.Printf("uaspace version %s (%s, %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "バージョン番号のみを表示")
	return cmd
}
