package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// version is set by the linker on release builds.
var version = "devel"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the deepview version",
	Run: func(cmd *cobra.Command, args []string) {
		v := version
		if v == "devel" {
			if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
				v = info.Main.Version
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
	},
}
