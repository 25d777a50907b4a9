package handler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfferRequestAmountForms(t *testing.T) {
	cases := []struct {
		name string
		body string
		want Amount
	}{
		{"number", `{"amount":500}`, "500"},
		{"string", `{"amount":"500"}`, "500"},
		{"large number", `{"amount":18446744073709551615}`, "18446744073709551615"},
		{"null", `{"amount":null}`, ""},
		{"missing", `{}`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var req OfferRequest
			require.NoError(t, json.Unmarshal([]byte(tc.body), &req))
			assert.Equal(t, tc.want, req.Amount)
		})
	}

	var req OfferRequest
	assert.Error(t, json.Unmarshal([]byte(`{"amount":true}`), &req))
	assert.Error(t, json.Unmarshal([]byte(`{"amount":[1]}`), &req))
}
