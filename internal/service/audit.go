package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ddramp/exchange/internal/domain"
	"github.com/ddramp/exchange/internal/repository"
)

const (
	entityDeal     = "deal"
	entityPreoffer = "preoffer"
)

// AuditService writes and reads the deal event trail.
type AuditService struct {
	store QueryStore
}

func NewAuditService(store QueryStore) *AuditService {
	return &AuditService{store: store}
}

// Write stores one event using the caller's transaction.
func (s *AuditService) Write(ctx context.Context, qtx *repository.Queries, entityType string, entityID int64, action string, metadata any) error {
	var raw []byte
	if metadata != nil {
		var err error
		raw, err = json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("encode audit metadata: %w", err)
		}
	}
	if _, err := qtx.InsertDealEvent(ctx, repository.InsertDealEventParams{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Metadata:   raw,
	}); err != nil {
		return fmt.Errorf("insert deal event: %w", err)
	}
	return nil
}

// DealHistory lists events recorded for a deal, oldest first.
func (s *AuditService) DealHistory(ctx context.Context, dealID domain.OfferID) ([]repository.DealEvent, error) {
	events, err := s.store.Queries().ListDealEvents(ctx, entityDeal, dealID.Int64())
	if err != nil {
		return nil, fmt.Errorf("list deal events: %w", err)
	}
	return events, nil
}
