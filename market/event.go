package market

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventMinted      = "MINTED"
	EventTransferred = "TRANSFERRED"
	EventPriceSet    = "PRICESET"
	EventListed      = "LISTED"
	EventDelisted    = "DELISTED"
	EventPurchased   = "PURCHASED"
	EventRoleChanged = "ROLECHANGED"
)

// Event is one entry of the append-only log consumed by external
// indexers. Unused fields stay zero for any given name.
type Event struct {
	Id        string
	Name      string
	AssetId   uint64
	From      string
	To        string
	URI       string
	Price     decimal.Decimal
	Role      string
	CreatedAt time.Time
}

func newEvent(name string) *Event {
	id, err := uuid.NewV4()
	if err != nil {
		panic(err)
	}
	return &Event{
		Id:        id.String(),
		Name:      name,
		CreatedAt: time.Now(),
	}
}
