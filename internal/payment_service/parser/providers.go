package parser

import (
	"regexp"

	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
)

// Provider is one row of the capability table: how to recognise a provider's
// notification, how to pull its transaction id out, and what to tell a
// customer at checkout.
type Provider struct {
	Method       domain.Method
	DisplayName  string
	Keywords     []string // lowercase substrings, Latin brand, Bengali brand, field label
	TxnPattern   *regexp.Regexp
	Instructions string
}

// Table order is classification order. Rocket sits ahead of Nagad because
// both print a TxnId label and Rocket's A/C label is the narrower signal.
var builtinProviders = []Provider{
	{
		Method:       domain.MethodBKash,
		DisplayName:  "bKash",
		Keywords:     []string{"bkash", "বিকাশ", "trxid"},
		TxnPattern:   regexp.MustCompile(`(?i)\btrx\s*id\s*[:#.]?\s*([A-Z0-9]{8,12})\b`),
		Instructions: "Send Money to the merchant number from your bKash app, then enter the TrxID from the confirmation SMS.",
	},
	{
		Method:       domain.MethodRocket,
		DisplayName:  "Rocket",
		Keywords:     []string{"rocket", "রকেট", "a/c:"},
		TxnPattern:   regexp.MustCompile(`(?i)\btxn\s*id\s*[:#.]?\s*(\d{8,12})\b`),
		Instructions: "Send money to the merchant Rocket account, then enter the numeric TxnId from the confirmation SMS.",
	},
	{
		Method:       domain.MethodNagad,
		DisplayName:  "Nagad",
		Keywords:     []string{"nagad", "নগদ", "txnid"},
		TxnPattern:   regexp.MustCompile(`(?i)\btxn\s*id\s*[:#.]?\s*([A-Z0-9]{8,12})\b`),
		Instructions: "Send Money to the merchant number from your Nagad app, then enter the TxnID from the confirmation SMS.",
	},
	{
		Method:       domain.MethodUpay,
		DisplayName:  "Upay",
		Keywords:     []string{"upay", "উপায়", "txn id"},
		TxnPattern:   regexp.MustCompile(`(?i)\b(?:txn|trx)\s*id\s*[:#.]?\s*([A-Z0-9]{8,12})\b`),
		Instructions: "Send money to the merchant number from your Upay app, then enter the transaction ID from the confirmation SMS.",
	},
}

var bankProvider = Provider{
	Method:       domain.MethodBank,
	DisplayName:  "Bank transfer",
	Instructions: "Transfer to the merchant bank account and upload a photo or screenshot of the transfer receipt.",
}

// Providers returns the checkout-facing table, bank last.
func Providers() []Provider {
	out := make([]Provider, 0, len(builtinProviders)+1)
	out = append(out, builtinProviders...)
	return append(out, bankProvider)
}

// Lookup returns the table row for m.
func Lookup(m domain.Method) (Provider, bool) {
	for _, p := range Providers() {
		if p.Method == m {
			return p, true
		}
	}
	return Provider{}, false
}
