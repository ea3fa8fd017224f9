// Command shelf crawls a grocery catalogue and writes one row per product.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
