package cli

import (
	"errors"
	"testing"

	"github.com/ddramp/exchange/internal/domain"
	"github.com/ddramp/exchange/internal/service"
	"github.com/ddramp/exchange/internal/worker"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSummarizeCycle(t *testing.T) {
	res := worker.CycleResult{
		Promotion: service.PromotionReport{
			Checked:  3,
			Promoted: []domain.OfferID{7},
			Pending:  1,
			Stale: []*service.StaleDepositError{{
				DepositID: 9,
				Expected:  decimal.NewFromInt(500),
				Observed:  decimal.NewFromInt(400),
			}},
		},
		Matched: 2,
		Release: service.ReleaseReport{
			Settled:  2,
			Released: []domain.OfferID{4},
			Failed: []*service.ReleaseFailure{{
				DealID:      5,
				Destination: "dest",
				Err:         errors.New("rpc down"),
			}},
		},
		MatchingErr: errors.New("lock timeout"),
	}

	s := summarizeCycle(res)
	assert.Equal(t, 3, s.Checked)
	assert.Equal(t, []domain.OfferID{7}, s.Promoted)
	assert.Len(t, s.Stale, 1)
	assert.Contains(t, s.Stale[0], "escrow holds 400, expected 500")
	assert.Equal(t, 2, s.Matched)
	assert.Equal(t, []domain.OfferID{4}, s.Released)
	assert.Len(t, s.ReleaseFailed, 1)
	assert.Contains(t, s.ReleaseFailed[0], "rpc down")
	assert.Equal(t, map[string]string{"matching": "lock timeout"}, s.StageErrors)
}

func TestSummarizeCycleWithoutErrors(t *testing.T) {
	s := summarizeCycle(worker.CycleResult{})
	assert.Nil(t, s.StageErrors)
	assert.Empty(t, s.Stale)
}
