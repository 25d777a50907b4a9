package repository

import (
	"context"
	"time"
)

const insertDealEvent = `
INSERT INTO deal_event (entity_type, entity_id, action, metadata)
VALUES ($1, $2, $3, $4)
RETURNING id
`

type InsertDealEventParams struct {
	EntityType string
	EntityID   int64
	Action     string
	Metadata   []byte
}

func (q *Queries) InsertDealEvent(ctx context.Context, arg InsertDealEventParams) (int64, error) {
	row := q.db.QueryRow(ctx, insertDealEvent, arg.EntityType, arg.EntityID, arg.Action, arg.Metadata)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const listDealEvents = `
SELECT id, entity_type, entity_id, action, metadata, created_at
FROM deal_event
WHERE entity_type = $1 AND entity_id = $2
ORDER BY id
`

type DealEvent struct {
	ID         int64
	EntityType string
	EntityID   int64
	Action     string
	Metadata   []byte
	CreatedAt  time.Time
}

func (q *Queries) ListDealEvents(ctx context.Context, entityType string, entityID int64) ([]DealEvent, error) {
	rows, err := q.db.Query(ctx, listDealEvents, entityType, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DealEvent
	for rows.Next() {
		var i DealEvent
		if err := rows.Scan(&i.ID, &i.EntityType, &i.EntityID, &i.Action, &i.Metadata, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
