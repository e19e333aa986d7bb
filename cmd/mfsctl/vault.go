package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mfsreconcile/golang_services/internal/payment_service/auth"
	"github.com/mfsreconcile/golang_services/internal/platform/config"
	"github.com/mfsreconcile/golang_services/internal/platform/vault"
)

func loadVault() (*vault.Vault, error) {
	cfg, err := config.Load("mfsctl")
	if err != nil {
		return nil, err
	}
	return vault.New(cfg.VaultSecret)
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a merchant bearer token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load("mfsctl")
			if err != nil {
				return err
			}
			merchant, _ := cmd.Flags().GetString("merchant")
			if merchant == "" {
				merchant = cfg.MerchantID
			}
			ttl, _ := cmd.Flags().GetDuration("ttl")
			token, err := auth.IssueMerchantToken(cfg.JWTSecret, cfg.JWTIssuer, merchant, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringP("merchant", "m", "", "Merchant id (default APP_MERCHANT_ID)")
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

func encryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt [value]",
		Short: "Encrypt a value with the configured vault secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := loadVault()
			if err != nil {
				return err
			}
			out, err := v.Encrypt(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func decryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt [ciphertext]",
		Short: "Decrypt a stored value; plaintext input is echoed back",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := loadVault()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v.Decrypt(args[0]))
			return nil
		},
	}
}

func maskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mask [phone]",
		Short: "Show a phone number the way logs and responses do",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), vault.MaskPhone(args[0]))
			return nil
		},
	}
}
