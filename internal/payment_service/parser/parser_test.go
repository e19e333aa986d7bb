package parser

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
)

func TestParse_BKashReceived(t *testing.T) {
	p := New(nil)

	res := p.Parse("You have received Tk 1,000.00 from 01712345678. TrxID ABC123XYZ")

	assert.Equal(t, domain.MethodBKash, res.Method)
	assert.Equal(t, "ABC123XYZ", res.TransactionID)
	require.True(t, res.Amount.Valid)
	assert.True(t, decimal.RequireFromString("1000.00").Equal(res.Amount.Decimal))
	assert.Equal(t, "01712345678", res.SenderNumber)
	assert.True(t, res.IsPaymentLike)
	assert.Equal(t, ParserBuiltin, res.Parser)
}

func TestParse_Providers(t *testing.T) {
	tests := []struct {
		name       string
		msg        string
		method     domain.Method
		txnID      string
		amount     string
		sender     string
		paymentish bool
	}{
		{
			name:       "bkash lowercase trxid with colon",
			msg:        "bKash: Cash In Tk 500.00 from 01812345678 successful. Fee Tk 0.00. Balance Tk 12,500.50. TrxID: 9ab3cd4efg at 12/05/2024",
			method:     domain.MethodBKash,
			txnID:      "9AB3CD4EFG",
			amount:     "500.00",
			sender:     "01812345678",
			paymentish: true,
		},
		{
			name:       "bkash sent money is not a credit",
			msg:        "Send Money Tk 200.00 to 01712345678 successful. TrxID BX12345678",
			method:     domain.MethodBKash,
			txnID:      "BX12345678",
			amount:     "200.00",
			sender:     "01712345678",
			paymentish: false,
		},
		{
			name:       "nagad money received",
			msg:        "Money Received. Amount: Tk 1,250.00 Sender: 01912345678 Ref: order TxnID: 73H6GT5K Balance: Tk 5,000.00",
			method:     domain.MethodNagad,
			txnID:      "73H6GT5K",
			amount:     "1250.00",
			sender:     "01912345678",
			paymentish: true,
		},
		{
			name:       "rocket numeric txn id",
			msg:        "Tk500.00 received from A/C:01612345678 Fee:Tk0, Your A/C Balance: Tk1,000.00 TxnId:1234567890 Date:01-JAN-24",
			method:     domain.MethodRocket,
			txnID:      "1234567890",
			amount:     "500.00",
			sender:     "01612345678",
			paymentish: true,
		},
		{
			name:       "rocket rejects alphanumeric id",
			msg:        "Rocket: Tk300 received from 01512345678 TxnId:AB12345678",
			method:     domain.MethodRocket,
			txnID:      "",
			amount:     "300",
			sender:     "01512345678",
			paymentish: true,
		},
		{
			name:       "upay with country code sender",
			msg:        "Upay: You have received BDT 750 from +8801312345678. Txn ID: UP9X8Y7Z6W",
			method:     domain.MethodUpay,
			txnID:      "UP9X8Y7Z6W",
			amount:     "750",
			sender:     "01312345678",
			paymentish: true,
		},
		{
			name:       "bengali nagad with bengali digits",
			msg:        "নগদ: ০১৭১২৩৪৫৬৭৮ থেকে ৳৫০০ টাকা পেয়েছেন। TxnID: NG7K2M9P4Q",
			method:     domain.MethodNagad,
			txnID:      "NG7K2M9P4Q",
			amount:     "500",
			sender:     "01712345678",
			paymentish: true,
		},
	}

	p := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := p.Parse(tt.msg)
			assert.Equal(t, tt.method, res.Method)
			assert.Equal(t, tt.txnID, res.TransactionID)
			require.True(t, res.Amount.Valid)
			assert.True(t, decimal.RequireFromString(tt.amount).Equal(res.Amount.Decimal), "amount %s", res.Amount.Decimal)
			assert.Equal(t, tt.sender, res.SenderNumber)
			assert.Equal(t, tt.paymentish, res.IsPaymentLike)
		})
	}
}

func TestParse_PrecomposedBengaliKeyword(t *testing.T) {
	res := New(nil).Parse("বিকাশ: ০১৮১২৩৪৫৬৭৮ থেকে ৳১,২০০ পে\u09DFেছেন। TrxID: BK12CD34EF")

	assert.Equal(t, domain.MethodBKash, res.Method)
	assert.True(t, res.IsPaymentLike)
	assert.Equal(t, "01812345678", res.SenderNumber)
	require.True(t, res.Amount.Valid)
	assert.True(t, decimal.NewFromInt(1200).Equal(res.Amount.Decimal))
}

func TestParse_Unknown(t *testing.T) {
	res := New(nil).Parse("Your OTP is 123456. Do not share it.")

	assert.Equal(t, domain.MethodUnknown, res.Method)
	assert.Empty(t, res.TransactionID)
	assert.False(t, res.Amount.Valid)
	assert.False(t, res.IsPaymentLike)
	assert.Equal(t, ParserNone, res.Parser)
}

func TestParse_CustomKeywordsFallback(t *testing.T) {
	p := New(map[string]string{"upay": " merchant pmt , shop credit "})

	res := p.Parse("MERCHANT PMT Tk 999 by 01712345678 Ref: QX55AB12")

	assert.Equal(t, domain.MethodUpay, res.Method)
	assert.Equal(t, "QX55AB12", res.TransactionID)
	require.True(t, res.Amount.Valid)
	assert.True(t, decimal.NewFromInt(999).Equal(res.Amount.Decimal))
	assert.Equal(t, "01712345678", res.SenderNumber)
	assert.True(t, res.IsPaymentLike)
	assert.Equal(t, ParserCustom, res.Parser)
}

func TestParse_BuiltinWinsOverCustom(t *testing.T) {
	p := New(map[string]string{"nagad": "received"})

	res := p.Parse("You have received Tk 10 from 01712345678. TrxID ABC123XYZ")

	assert.Equal(t, domain.MethodBKash, res.Method)
	assert.Equal(t, ParserBuiltin, res.Parser)
}

func TestParse_GenericTxnSkipsWords(t *testing.T) {
	p := New(map[string]string{"bkash": "shop pay"})

	res := p.Parse("shop pay Transaction successful, ref 77ZZ99AA, Tk 50")

	assert.Equal(t, "77ZZ99AA", res.TransactionID)
}

func TestParse_Deterministic(t *testing.T) {
	p := New(map[string]string{"rocket": "dbbl"})
	msgs := []string{
		"You have received Tk 1,000.00 from 01712345678. TrxID ABC123XYZ",
		"DBBL credit Tk 20 TxnId 5555555555",
		"নগদ: ০১৭১২৩৪৫৬৭৮ থেকে ৳৫০০ টাকা পেয়েছেন। TxnID: NG7K2M9P4Q",
		"",
	}
	for _, msg := range msgs {
		first := p.Parse(msg)
		for i := 0; i < 50; i++ {
			assert.Equal(t, first, p.Parse(msg))
		}
	}
}

func TestLookup(t *testing.T) {
	prov, ok := Lookup(domain.MethodBank)
	require.True(t, ok)
	assert.Equal(t, "Bank transfer", prov.DisplayName)

	_, ok = Lookup(domain.MethodUnknown)
	assert.False(t, ok)
	assert.Len(t, Providers(), 5)
}
