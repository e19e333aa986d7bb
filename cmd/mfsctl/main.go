// Command mfsctl is the operator CLI for the payment service: parse a message
// offline, run a sweep, rotate the webhook secret, mint merchant tokens and
// work with vault-encrypted values.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mfsctl",
		Short:         "mfsctl - operator tools for the MFS payment service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(rotateSecretCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(encryptCmd())
	rootCmd.AddCommand(decryptCmd())
	rootCmd.AddCommand(maskCmd())
	return rootCmd
}
