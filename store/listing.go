package store

import (
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/kokirinetwork/shop/market"
	"github.com/shopspring/decimal"
)

const (
	prefixListingPayload = "MARKET:SALE:PAYLOAD:"
	prefixListingCreated = "MARKET:SALE:CREATED:"
	prefixListingSeller  = "MARKET:SALE:SELLER:"

	prefixPricePayload = "MARKET:PRICE:PAYLOAD:"
)

type listingPayload struct {
	AssetId   uint64
	Seller    string
	Price     string
	CreatedAt time.Time
}

type pricePayload struct {
	AssetId   uint64
	Price     string
	UpdatedAt time.Time
}

// WriteListing creates or updates the single listing of an asset. An
// update keeps the creation index entry, so ListListings order is
// stable across re-pricing.
func (bs *BadgerStore) WriteListing(l *market.Listing) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		old, err := bs.readListing(txn, l.AssetId)
		if err != nil {
			return err
		}
		if old != nil && old.Seller != l.Seller {
			panic(l.AssetId)
		}
		if old != nil {
			l.CreatedAt = old.CreatedAt
		}
		return bs.writeListing(txn, l)
	})
}

func (bs *BadgerStore) ReadListing(id uint64) (*market.Listing, error) {
	txn := bs.db.NewTransaction(false)
	defer txn.Discard()

	return bs.readListing(txn, id)
}

func (bs *BadgerStore) DeleteListing(id uint64) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		l, err := bs.readListing(txn, id)
		if err != nil || l == nil {
			return err
		}
		return bs.deleteListing(txn, l)
	})
}

func (bs *BadgerStore) ListListings(limit int) ([]*market.Listing, error) {
	txn := bs.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(prefixListingCreated)
	it := txn.NewIterator(opts)
	defer it.Close()

	var listings []*market.Listing
	for it.Seek(opts.Prefix); it.Valid(); it.Next() {
		key := it.Item().Key()
		id := bytesToId(key[len(opts.Prefix)+8:])
		l, err := bs.readListing(txn, id)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
		if len(listings) == limit {
			break
		}
	}
	return listings, nil
}

func (bs *BadgerStore) ListListingsBySeller(seller string, limit int) ([]*market.Listing, error) {
	txn := bs.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(prefixListingSeller + escapeKeyPart(seller) + ":")
	it := txn.NewIterator(opts)
	defer it.Close()

	var listings []*market.Listing
	for it.Seek(opts.Prefix); it.Valid(); it.Next() {
		key := it.Item().Key()
		id := bytesToId(key[len(opts.Prefix):])
		l, err := bs.readListing(txn, id)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
		if len(listings) == limit {
			break
		}
	}
	return listings, nil
}

func (bs *BadgerStore) WritePrice(pr *market.PriceRecord) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		key := append([]byte(prefixPricePayload), idToBytes(pr.AssetId)...)
		val := MsgpackMarshalPanic(&pricePayload{
			AssetId:   pr.AssetId,
			Price:     pr.Price.String(),
			UpdatedAt: pr.UpdatedAt,
		})
		return txn.Set(key, val)
	})
}

func (bs *BadgerStore) ReadPrice(id uint64) (*market.PriceRecord, error) {
	txn := bs.db.NewTransaction(false)
	defer txn.Discard()

	key := append([]byte(prefixPricePayload), idToBytes(id)...)
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	var p pricePayload
	err = MsgpackUnmarshal(val, &p)
	if err != nil {
		return nil, err
	}
	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		return nil, err
	}
	return &market.PriceRecord{
		AssetId:   p.AssetId,
		Price:     price,
		UpdatedAt: p.UpdatedAt,
	}, nil
}

// SettlePurchase commits the asset side of a sale as one transaction.
// The listing and the seller's ownership are re-verified inside the
// transaction, then ownership moves to the buyer and the listing is
// deleted. Nothing is retained on failure.
func (bs *BadgerStore) SettlePurchase(id uint64, buyer string) (*market.Listing, error) {
	var listing *market.Listing
	err := bs.db.Update(func(txn *badger.Txn) error {
		l, err := bs.readListing(txn, id)
		if err != nil {
			return err
		}
		if l == nil {
			return market.Errorf(market.ErrInvalidState, "asset %d is not for sale", id)
		}
		a, err := bs.readAsset(txn, id)
		if err != nil {
			return err
		}
		if a == nil || a.Owner != l.Seller {
			return market.Errorf(market.ErrInvalidState, "listing of asset %d is stale", id)
		}
		err = bs.transferAsset(txn, id, l.Seller, buyer)
		if err != nil {
			return err
		}
		err = bs.deleteListing(txn, l)
		if err != nil {
			return err
		}
		listing = l
		return nil
	})
	return listing, err
}

func (bs *BadgerStore) writeListing(txn *badger.Txn, l *market.Listing) error {
	key := append([]byte(prefixListingPayload), idToBytes(l.AssetId)...)
	val := MsgpackMarshalPanic(&listingPayload{
		AssetId:   l.AssetId,
		Seller:    l.Seller,
		Price:     l.Price.String(),
		CreatedAt: l.CreatedAt,
	})
	err := txn.Set(key, val)
	if err != nil {
		return err
	}
	err = txn.Set(buildListingCreatedKey(l), []byte{1})
	if err != nil {
		return err
	}
	return txn.Set(buildListingSellerKey(l.Seller, l.AssetId), []byte{1})
}

func (bs *BadgerStore) deleteListing(txn *badger.Txn, l *market.Listing) error {
	key := append([]byte(prefixListingPayload), idToBytes(l.AssetId)...)
	err := txn.Delete(key)
	if err != nil {
		return err
	}
	err = txn.Delete(buildListingCreatedKey(l))
	if err != nil {
		return err
	}
	return txn.Delete(buildListingSellerKey(l.Seller, l.AssetId))
}

func (bs *BadgerStore) readListing(txn *badger.Txn, id uint64) (*market.Listing, error) {
	key := append([]byte(prefixListingPayload), idToBytes(id)...)
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	var p listingPayload
	err = MsgpackUnmarshal(val, &p)
	if err != nil {
		return nil, err
	}
	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		return nil, err
	}
	return &market.Listing{
		AssetId:   p.AssetId,
		Seller:    p.Seller,
		Price:     price,
		CreatedAt: p.CreatedAt,
	}, nil
}

func buildListingCreatedKey(l *market.Listing) []byte {
	key := append([]byte(prefixListingCreated), tsToBytes(l.CreatedAt)...)
	return append(key, idToBytes(l.AssetId)...)
}

func buildListingSellerKey(seller string, id uint64) []byte {
	key := []byte(prefixListingSeller + escapeKeyPart(seller) + ":")
	return append(key, idToBytes(id)...)
}
