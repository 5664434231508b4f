package market

import (
	"time"

	"github.com/shopspring/decimal"
)

type Asset struct {
	Id        uint64
	Owner     string
	URI       string
	CreatedAt time.Time
}

type Listing struct {
	AssetId   uint64
	Seller    string
	Price     decimal.Decimal
	CreatedAt time.Time
}

type PriceRecord struct {
	AssetId   uint64
	Price     decimal.Decimal
	UpdatedAt time.Time
}

// Store is the persistence boundary of the ledgers. Implementations
// return (nil, nil) for missing entries, every mutation is a single
// transaction, and typed errors are the ledgers' concern.
type Store interface {
	WriteProperty(key, val []byte) error
	ReadProperty(key []byte) ([]byte, error)

	NextAssetId() (uint64, error)
	WriteAsset(a *Asset) error
	ReadAsset(id uint64) (*Asset, error)
	TransferAsset(id uint64, from, to string) error
	ApproveAsset(id uint64, operator string) error
	ReadAssetApproval(id uint64) (string, error)
	ListAssetsByOwner(owner string, limit int) ([]*Asset, error)

	WritePrice(pr *PriceRecord) error
	ReadPrice(id uint64) (*PriceRecord, error)

	WriteListing(l *Listing) error
	ReadListing(id uint64) (*Listing, error)
	DeleteListing(id uint64) error
	ListListings(limit int) ([]*Listing, error)
	ListListingsBySeller(seller string, limit int) ([]*Listing, error)

	SettlePurchase(id uint64, buyer string) (*Listing, error)

	WriteEvent(e *Event) error
	ListEvents(limit int) ([]*Event, error)
}

// PaymentLedger is the fungible token the shop settles against. The
// spender of TransferFrom is the marketplace address, moving funds it
// was approved for by the buyer.
type PaymentLedger interface {
	TransferFrom(spender, from, to string, amount decimal.Decimal) error
	BalanceOf(account string) (decimal.Decimal, error)
	Allowance(owner, spender string) (decimal.Decimal, error)
}
