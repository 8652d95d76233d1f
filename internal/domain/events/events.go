package events

import (
	"encoding/json"
	"fmt"
)

// Change is the wire shape published to the change-stream channels after a
// repository mutation. The notification fan-out consumes it; delivery is
// best-effort and may lag the write it describes.
type Change struct {
	Entity    Entity `json:"entity"`
	Kind      Kind   `json:"kind"`
	EntityID  int64  `json:"entity_id"`
	UserID    int64  `json:"user_id"`
	ItemType  string `json:"item_type,omitempty"`
	ItemID    int64  `json:"item_id,omitempty"`
	OldStatus string `json:"old_status,omitempty"`
	NewStatus string `json:"new_status,omitempty"`
}

type Entity string

const (
	EntityPurchase        Entity = "purchases"
	EntityPurchaseRequest Entity = "purchase_requests"
	EntityReadingProgress Entity = "reading_progress"
)

type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
)

// Channel names the change-stream channel for an entity.
func (e Entity) Channel() string {
	return "changes:" + string(e)
}

func (c Change) Marshal() ([]byte, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal change event: %w", err)
	}
	return raw, nil
}

func Unmarshal(raw []byte) (Change, error) {
	var change Change
	if err := json.Unmarshal(raw, &change); err != nil {
		return Change{}, fmt.Errorf("unmarshal change event: %w", err)
	}
	return change, nil
}
