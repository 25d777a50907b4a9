package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ddramp/exchange/internal/domain"
	"github.com/ddramp/exchange/internal/worker"
	"github.com/spf13/cobra"
)

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run promotion, matching and release once and print the outcome",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := getApp().RunCycle(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(summarizeCycle(res)); err != nil {
			return err
		}
		if err := errors.Join(res.PromotionErr, res.MatchingErr, res.ReleaseErr); err != nil {
			return fmt.Errorf("cycle finished with stage errors: %w", err)
		}
		return nil
	},
}

type cycleSummary struct {
	Checked         int               `json:"checked"`
	Promoted        []domain.OfferID  `json:"promoted"`
	Pending         int               `json:"pending"`
	Stale           []string          `json:"stale"`
	PromotionFailed int               `json:"promotion_failed"`
	Matched         int               `json:"matched"`
	Settled         int               `json:"settled"`
	Released        []domain.OfferID  `json:"released"`
	ReleaseFailed   []string          `json:"release_failed"`
	StageErrors     map[string]string `json:"stage_errors,omitempty"`
}

func summarizeCycle(res worker.CycleResult) cycleSummary {
	s := cycleSummary{
		Checked:         res.Promotion.Checked,
		Promoted:        res.Promotion.Promoted,
		Pending:         res.Promotion.Pending,
		PromotionFailed: res.Promotion.Failed,
		Matched:         res.Matched,
		Settled:         res.Release.Settled,
		Released:        res.Release.Released,
	}
	for _, stale := range res.Promotion.Stale {
		s.Stale = append(s.Stale, stale.Error())
	}
	for _, failed := range res.Release.Failed {
		s.ReleaseFailed = append(s.ReleaseFailed, failed.Error())
	}
	for stage, err := range map[string]error{
		"promotion": res.PromotionErr,
		"matching":  res.MatchingErr,
		"release":   res.ReleaseErr,
	} {
		if err == nil {
			continue
		}
		if s.StageErrors == nil {
			s.StageErrors = map[string]string{}
		}
		s.StageErrors[stage] = err.Error()
	}
	return s
}
