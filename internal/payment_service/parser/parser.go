// Package parser classifies MFS notification SMS and extracts the
// transaction facts used for reconciliation. Parsing is a pure function of
// the message and the keyword configuration.
package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
)

// Parser names recorded on each SMS log.
const (
	ParserBuiltin = "builtin"
	ParserCustom  = "custom"
	ParserNone    = "none"
)

var (
	amountPattern = regexp.MustCompile(`(?i)(?:\btk\.?|\bbdt|৳)\s*([0-9][0-9,]*(?:\.[0-9]+)?)`)

	// A number following "from" (English) or preceding "থেকে" (Bengali) is
	// the payer; otherwise the first mobile number in the text is used.
	senderFromPattern = regexp.MustCompile(`(?i)\bfrom\s*(?:a/c)?\s*:?\s*(?:\+?88)?(01[3-9]\d{8})(?:\D|$)`)
	senderBengali     = regexp.MustCompile(`(?:\+?88)?(01[3-9]\d{8})\s*থেকে`)
	senderAnyPattern  = regexp.MustCompile(`(?:^|\D)(?:\+?88)?(01[3-9]\d{8})(?:\D|$)`)
	genericTxnPattern = regexp.MustCompile(`(?i)\b(?:transaction|trx|txn|ref)\s*(?:id|no)?\s*[:#.]?\s*([A-Z0-9]{6,20})\b`)

	// Bengali digits become ASCII; the precomposed YYA is split into
	// YA + NUKTA so keyword matching sees one spelling.
	bengaliNormalizer = strings.NewReplacer(
		"০", "0", "১", "1", "২", "2", "৩", "3", "৪", "4",
		"৫", "5", "৬", "6", "৭", "7", "৮", "8", "৯", "9",
		"\u09DF", "\u09AF\u09BC",
	)
)

var receivedKeywords = []string{"received", "credited", "cash in", "পেয়েছেন", "জমা"}

// Result is the structured reading of one message.
type Result struct {
	Method        domain.Method
	TransactionID string
	Amount        decimal.NullDecimal
	SenderNumber  string
	IsPaymentLike bool
	Parser        string
}

type customRule struct {
	method   domain.Method
	keywords []string
}

type Parser struct {
	providers []Provider
	custom    []customRule
}

// New builds a parser. custom maps a method wire value ("bkash", ...) to an
// operator-supplied comma separated keyword list; empty lists are ignored.
func New(custom map[string]string) *Parser {
	p := &Parser{providers: builtinProviders}
	for _, prov := range builtinProviders {
		list := splitKeywords(custom[string(prov.Method)])
		if len(list) > 0 {
			p.custom = append(p.custom, customRule{method: prov.Method, keywords: list})
		}
	}
	return p
}

func splitKeywords(list string) []string {
	var out []string
	for _, k := range strings.Split(list, ",") {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Parse classifies raw and extracts transaction id, amount and payer.
// Unknown messages still get amount and sender extracted for display.
func (p *Parser) Parse(raw string) Result {
	text := bengaliNormalizer.Replace(raw)
	lower := strings.ToLower(text)

	for _, prov := range p.providers {
		if !containsAny(lower, prov.Keywords) {
			continue
		}
		return Result{
			Method:        prov.Method,
			TransactionID: firstGroup(prov.TxnPattern, text),
			Amount:        extractAmount(text),
			SenderNumber:  extractSender(text),
			IsPaymentLike: containsAny(lower, receivedKeywords),
			Parser:        ParserBuiltin,
		}
	}

	for _, rule := range p.custom {
		if !containsAny(lower, rule.keywords) {
			continue
		}
		return Result{
			Method:        rule.method,
			TransactionID: genericTransactionID(text),
			Amount:        extractAmount(text),
			SenderNumber:  extractSender(text),
			IsPaymentLike: true,
			Parser:        ParserCustom,
		}
	}

	return Result{
		Method:        domain.MethodUnknown,
		Amount:        extractAmount(text),
		SenderNumber:  extractSender(text),
		IsPaymentLike: containsAny(lower, receivedKeywords),
		Parser:        ParserNone,
	}
}

func containsAny(lower string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func firstGroup(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return domain.NormalizeTransactionID(m[1])
}

// genericTransactionID only accepts tokens that carry a digit, so a label
// followed by an ordinary word ("Transaction successful") is skipped.
func genericTransactionID(text string) string {
	for _, m := range genericTxnPattern.FindAllStringSubmatch(text, -1) {
		if strings.ContainsAny(m[1], "0123456789") {
			return domain.NormalizeTransactionID(m[1])
		}
	}
	return ""
}

func extractAmount(text string) decimal.NullDecimal {
	m := amountPattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func extractSender(text string) string {
	for _, re := range []*regexp.Regexp{senderFromPattern, senderBengali, senderAnyPattern} {
		if m := re.FindStringSubmatch(text); len(m) >= 2 {
			return domain.NormalizePhone(m[1])
		}
	}
	return ""
}
