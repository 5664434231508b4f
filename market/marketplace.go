package market

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Marketplace is the sales state machine. It never trusts its own
// listing table for ownership: every mutation is authorized against
// the asset ledger's current owner, and a purchase re-reads the owner
// before the payment leg moves.
type Marketplace struct {
	address string
	store   Store
	assets  *AssetLedger
	payment PaymentLedger
	roles   *AccessControl
	log     *zap.SugaredLogger

	mutex   sync.Mutex
	pending map[uint64]bool
}

func NewMarketplace(address string, store Store, assets *AssetLedger, payment PaymentLedger, roles *AccessControl, log *zap.SugaredLogger) *Marketplace {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Marketplace{
		address: address,
		store:   store,
		assets:  assets,
		payment: payment,
		roles:   roles,
		log:     log,
		pending: make(map[uint64]bool),
	}
}

// Address is the identity sellers approve on the asset ledger and
// buyers approve on the payment ledger.
func (mp *Marketplace) Address() string {
	return mp.address
}

// SetPrice writes the price record, and keeps an active listing's
// price equal to it.
func (mp *Marketplace) SetPrice(caller string, id uint64, price decimal.Decimal) error {
	owner, err := mp.assets.OwnerOf(id)
	if err != nil {
		return err
	}
	if caller == "" || caller != owner {
		return Errorf(ErrUnauthorized, "price of asset %d is set by its owner %s", id, owner)
	}
	if price.Sign() <= 0 {
		return Errorf(ErrInvalidArgument, "price %s must be positive", price)
	}
	err = mp.store.WritePrice(&PriceRecord{
		AssetId:   id,
		Price:     price,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		return err
	}
	listing, err := mp.store.ReadListing(id)
	if err != nil {
		return err
	}
	if listing != nil {
		listing.Price = price
		err = mp.store.WriteListing(listing)
		if err != nil {
			return err
		}
	}
	evt := newEvent(EventPriceSet)
	evt.AssetId = id
	evt.Price = price
	err = mp.store.WriteEvent(evt)
	if err != nil {
		return err
	}
	mp.log.Infow("price set", "id", id, "price", price)
	return nil
}

// OfferForSale lists the asset at the given price. Re-listing an
// already listed asset fails; a live listing is re-priced through
// SetPrice. The transfer approval for the marketplace address is a
// precondition checked at purchase time, not here.
func (mp *Marketplace) OfferForSale(caller string, id uint64, price decimal.Decimal) error {
	owner, err := mp.assets.OwnerOf(id)
	if err != nil {
		return err
	}
	if caller == "" || caller != owner {
		return Errorf(ErrUnauthorized, "asset %d is offered by its owner %s", id, owner)
	}
	if price.Sign() <= 0 {
		return Errorf(ErrInvalidArgument, "price %s must be positive", price)
	}
	old, err := mp.store.ReadListing(id)
	if err != nil {
		return err
	}
	if old != nil {
		return Errorf(ErrInvalidState, "asset %d is already listed", id)
	}
	err = mp.store.WriteListing(&Listing{
		AssetId:   id,
		Seller:    owner,
		Price:     price,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return err
	}
	err = mp.store.WritePrice(&PriceRecord{
		AssetId:   id,
		Price:     price,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		return err
	}
	evt := newEvent(EventListed)
	evt.AssetId = id
	evt.From = owner
	evt.Price = price
	err = mp.store.WriteEvent(evt)
	if err != nil {
		return err
	}
	mp.log.Infow("asset listed", "id", id, "seller", owner, "price", price)
	return nil
}

// RemoveSale deactivates the listing. The price record persists.
func (mp *Marketplace) RemoveSale(caller string, id uint64) error {
	listing, err := mp.store.ReadListing(id)
	if err != nil {
		return err
	}
	if listing == nil {
		return Errorf(ErrNotFound, "no listing for asset %d", id)
	}
	if caller == "" || caller != listing.Seller {
		return Errorf(ErrUnauthorized, "listing of asset %d is removed by its seller %s", id, listing.Seller)
	}
	err = mp.store.DeleteListing(id)
	if err != nil {
		return err
	}
	evt := newEvent(EventDelisted)
	evt.AssetId = id
	evt.From = listing.Seller
	err = mp.store.WriteEvent(evt)
	if err != nil {
		return err
	}
	mp.log.Infow("asset delisted", "id", id, "seller", listing.Seller)
	return nil
}

// Purchase executes a sale as one all-or-nothing transition. The
// payment leg runs first and must be confirmed before any asset state
// mutates; ownership move and delisting then commit in a single store
// transaction that re-verifies the seller still owns the asset.
// A nested purchase of the same asset while the payment call is in
// flight fails with ErrRetryable.
func (mp *Marketplace) Purchase(buyer string, id uint64) error {
	if buyer == "" {
		return Errorf(ErrInvalidArgument, "empty buyer")
	}
	if !mp.beginPurchase(id) {
		return Errorf(ErrRetryable, "purchase of asset %d already in progress", id)
	}
	defer mp.endPurchase(id)

	listing, err := mp.store.ReadListing(id)
	if err != nil {
		return err
	}
	if listing == nil {
		return Errorf(ErrInvalidState, "asset %d is not for sale", id)
	}
	owner, err := mp.assets.OwnerOf(id)
	if err != nil {
		return err
	}
	if owner != listing.Seller {
		return Errorf(ErrInvalidState, "listing of asset %d is stale, seller %s no longer owns it", id, listing.Seller)
	}
	operator, err := mp.store.ReadAssetApproval(id)
	if err != nil {
		return err
	}
	if operator != mp.address {
		return Errorf(ErrInvalidState, "asset %d is not approved for the marketplace", id)
	}

	err = mp.payment.TransferFrom(mp.address, buyer, listing.Seller, listing.Price)
	if err != nil {
		return err
	}
	_, err = mp.store.SettlePurchase(id, buyer)
	if err != nil {
		// The payment leg already settled. Under the serialized
		// execution model this only happens on storage failure.
		mp.log.Errorw("purchase settlement failed after payment", "id", id, "buyer", buyer, "error", err)
		return err
	}
	evt := newEvent(EventPurchased)
	evt.AssetId = id
	evt.From = listing.Seller
	evt.To = buyer
	evt.Price = listing.Price
	err = mp.store.WriteEvent(evt)
	if err != nil {
		// the sale is already settled, an event log gap must not
		// unwind it into a buyer-visible failure
		mp.log.Errorw("purchase event write failed", "id", id, "buyer", buyer, "error", err)
	}
	mp.log.Infow("asset purchased", "id", id, "seller", listing.Seller, "buyer", buyer, "price", listing.Price)
	return nil
}

// ListAll returns a snapshot of every active listing in listing
// creation order.
func (mp *Marketplace) ListAll() ([]*Listing, error) {
	return mp.store.ListListings(0)
}

func (mp *Marketplace) ListBy(seller string) ([]*Listing, error) {
	return mp.store.ListListingsBySeller(seller, 0)
}

func (mp *Marketplace) ListedIdsBy(seller string) ([]uint64, error) {
	listings, err := mp.store.ListListingsBySeller(seller, 0)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, len(listings))
	for i, l := range listings {
		ids[i] = l.AssetId
	}
	return ids, nil
}

// PriceOf returns the last price set for the asset, listed or not.
func (mp *Marketplace) PriceOf(id uint64) (decimal.Decimal, error) {
	pr, err := mp.store.ReadPrice(id)
	if err != nil {
		return decimal.Zero, err
	}
	if pr == nil {
		return decimal.Zero, Errorf(ErrNotFound, "no price for asset %d", id)
	}
	return pr.Price, nil
}

func (mp *Marketplace) SetAdmin(caller, admin string) error {
	return mp.roles.Grant(caller, RoleAdmin, admin)
}

func (mp *Marketplace) Admin() (string, error) {
	return mp.roles.Holder(RoleAdmin)
}

func (mp *Marketplace) beginPurchase(id uint64) bool {
	mp.mutex.Lock()
	defer mp.mutex.Unlock()
	if mp.pending[id] {
		return false
	}
	mp.pending[id] = true
	return true
}

func (mp *Marketplace) endPurchase(id uint64) {
	mp.mutex.Lock()
	defer mp.mutex.Unlock()
	delete(mp.pending, id)
}
