package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatement(t *testing.T) {
	body := "# Date,Description,Amount,Account,Transaction ID\n" +
		"Date,Description,Amount,Account,Transaction ID\n" +
		"2024-03-01, Transfer to DE89 3704, -500.00, DE11 2222, tx-1\n" +
		"\n" +
		"2024-03-01,From DE11 2222,500,DE89 3704,tx-2 # inbound\r\n" +
		"2024-03-02,too,few,fields\n" +
		"2024-03-02,bad amount,five hundred,DE89 3704,tx-3\n" +
		"2024-03-02,a,1,b,c,extra\n"

	stmt := ParseStatement(body)
	require.Len(t, stmt.Records, 2)
	assert.Equal(t, 3, stmt.Dropped)

	first := stmt.Records[0]
	assert.Equal(t, "2024-03-01", first.Date)
	assert.Equal(t, "Transfer to DE89 3704", first.Description)
	assert.True(t, first.Amount.Equal(decimal.NewFromInt(-500)))
	assert.Equal(t, "DE11 2222", first.Account)
	assert.Equal(t, "tx-1", first.TransactionID)

	second := stmt.Records[1]
	assert.Equal(t, "DE89 3704", second.Account)
	assert.Equal(t, "tx-2", second.TransactionID)
}

func TestParseStatement_Empty(t *testing.T) {
	stmt := ParseStatement("")
	assert.Empty(t, stmt.Records)
	assert.Zero(t, stmt.Dropped)

	stmt = ParseStatement("# only a comment\n   \n")
	assert.Empty(t, stmt.Records)
	assert.Zero(t, stmt.Dropped)
}

func TestSettlementEvidence(t *testing.T) {
	const buyerBank, sellerBank = "BUYER-IBAN-1", "SELLER-IBAN-2"

	cases := []struct {
		name           string
		rec            StatementRecord
		buyerSent      bool
		sellerReceived bool
	}{
		{
			name:      "buyer statement names seller",
			rec:       StatementRecord{Account: buyerBank, Description: "SEPA out to SELLER-IBAN-2"},
			buyerSent: true,
		},
		{
			name:           "seller statement names buyer",
			rec:            StatementRecord{Account: sellerBank, Description: "incoming from BUYER-IBAN-1 ref 7"},
			sellerReceived: true,
		},
		{
			name: "account matches but memo does not",
			rec:  StatementRecord{Account: buyerBank, Description: "rent"},
		},
		{
			name: "memo matches but account is unrelated",
			rec:  StatementRecord{Account: "OTHER", Description: "SELLER-IBAN-2 BUYER-IBAN-1"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buyerSent, sellerReceived := settlementEvidence(tc.rec, buyerBank, sellerBank)
			assert.Equal(t, tc.buyerSent, buyerSent)
			assert.Equal(t, tc.sellerReceived, sellerReceived)
		})
	}
}

func TestSettlementEvidence_SameAccountBothSides(t *testing.T) {
	buyerSent, sellerReceived := settlementEvidence(StatementRecord{Account: "X", Description: "self X"}, "X", "X")
	assert.True(t, buyerSent)
	assert.True(t, sellerReceived)
}

func TestVerifyHMAC(t *testing.T) {
	svc := NewReadoutService(nil, "secret", false)
	body := []byte("2024-03-01,memo,1,acct,tx\n")

	assert.True(t, svc.verifyHMAC(body, signReadout("secret", body)))
	assert.False(t, svc.verifyHMAC(body, signReadout("other", body)))
	assert.False(t, svc.verifyHMAC(body, ""))

	assert.False(t, NewReadoutService(nil, "", false).verifyHMAC(body, ""))
	assert.True(t, NewReadoutService(nil, "", true).verifyHMAC(body, ""))
}
