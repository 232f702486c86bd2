// Command deepview inspects deepview schema files: it validates them,
// enumerates the traversal paths of an entity and prints the handler
// set a registry would build.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
