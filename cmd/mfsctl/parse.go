package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mfsreconcile/golang_services/internal/payment_service/parser"
	"github.com/mfsreconcile/golang_services/internal/platform/config"
)

type parseOutput struct {
	Method        string `json:"method"`
	TransactionID string `json:"transaction_id,omitempty"`
	Amount        string `json:"amount,omitempty"`
	Sender        string `json:"sender,omitempty"`
	PaymentLike   bool   `json:"payment_like"`
	Parser        string `json:"parser"`
}

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse [message]",
		Short: "Parse an SMS body the way ingestion does",
		Long: `Parse an SMS body with the built-in provider rules plus any
APP_CUSTOM_KEYWORDS_* lists. Reads stdin when no message is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := messageArg(cmd, args)
			if err != nil {
				return err
			}
			cfg, err := config.Load("mfsctl")
			if err != nil {
				return err
			}
			asJSON, _ := cmd.Flags().GetBool("json")
			return printParse(cmd.OutOrStdout(), parser.New(cfg.CustomKeywords()).Parse(msg), asJSON)
		},
	}
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")
	return cmd
}

func messageArg(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	raw, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read message from stdin: %w", err)
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		return "", fmt.Errorf("no message given")
	}
	return msg, nil
}

func printParse(w io.Writer, res parser.Result, asJSON bool) error {
	out := parseOutput{
		Method:        string(res.Method),
		TransactionID: res.TransactionID,
		Sender:        res.SenderNumber,
		PaymentLike:   res.IsPaymentLike,
		Parser:        res.Parser,
	}
	if res.Amount.Valid {
		out.Amount = res.Amount.Decimal.StringFixed(2)
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	fmt.Fprintf(w, "Method:         %s\n", valueOrDefault(out.Method, "unknown"))
	fmt.Fprintf(w, "Transaction ID: %s\n", valueOrDefault(out.TransactionID, "-"))
	fmt.Fprintf(w, "Amount:         %s\n", valueOrDefault(out.Amount, "-"))
	fmt.Fprintf(w, "Sender:         %s\n", valueOrDefault(out.Sender, "-"))
	fmt.Fprintf(w, "Payment-like:   %t\n", out.PaymentLike)
	fmt.Fprintf(w, "Parser:         %s\n", out.Parser)
	return nil
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
