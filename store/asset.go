package store

import (
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/kokirinetwork/shop/market"
)

const (
	prefixAssetPayload = "MARKET:ASSET:PAYLOAD:"
	prefixAssetOwner   = "MARKET:ASSET:OWNER:"
	prefixAssetApprove = "MARKET:ASSET:APPROVE:"

	propertyAssetNonce = "MARKET:ASSET:NONCE"
)

// NextAssetId allocates a fresh identifier. Identifiers start at 1 and
// are never reused.
func (bs *BadgerStore) NextAssetId() (uint64, error) {
	var id uint64
	err := bs.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(propertyAssetNonce))
		if err == nil {
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			id = bytesToId(val)
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		id += 1
		return txn.Set([]byte(propertyAssetNonce), idToBytes(id))
	})
	return id, err
}

func (bs *BadgerStore) WriteAsset(a *market.Asset) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		old, err := bs.readAsset(txn, a.Id)
		if err != nil {
			return err
		}
		if old != nil {
			panic(a.Id)
		}
		key := append([]byte(prefixAssetPayload), idToBytes(a.Id)...)
		err = txn.Set(key, MsgpackMarshalPanic(a))
		if err != nil {
			return err
		}
		return txn.Set(buildAssetOwnerKey(a.Owner, a.Id), []byte{1})
	})
}

func (bs *BadgerStore) ReadAsset(id uint64) (*market.Asset, error) {
	txn := bs.db.NewTransaction(false)
	defer txn.Discard()

	return bs.readAsset(txn, id)
}

// TransferAsset moves ownership in one transaction: payload rewrite,
// owned-index move and approval clear.
func (bs *BadgerStore) TransferAsset(id uint64, from, to string) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		return bs.transferAsset(txn, id, from, to)
	})
}

func (bs *BadgerStore) ApproveAsset(id uint64, operator string) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		key := append([]byte(prefixAssetApprove), idToBytes(id)...)
		if operator == "" {
			return txn.Delete(key)
		}
		return txn.Set(key, []byte(operator))
	})
}

func (bs *BadgerStore) ReadAssetApproval(id uint64) (string, error) {
	txn := bs.db.NewTransaction(false)
	defer txn.Discard()

	return bs.readAssetApproval(txn, id)
}

func (bs *BadgerStore) ListAssetsByOwner(owner string, limit int) ([]*market.Asset, error) {
	txn := bs.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(prefixAssetOwner + escapeKeyPart(owner) + ":")
	it := txn.NewIterator(opts)
	defer it.Close()

	var assets []*market.Asset
	for it.Seek(opts.Prefix); it.Valid(); it.Next() {
		key := it.Item().Key()
		id := bytesToId(key[len(opts.Prefix):])
		a, err := bs.readAsset(txn, id)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
		if len(assets) == limit {
			break
		}
	}
	return assets, nil
}

func (bs *BadgerStore) transferAsset(txn *badger.Txn, id uint64, from, to string) error {
	a, err := bs.readAsset(txn, id)
	if err != nil {
		return err
	}
	if a == nil {
		return fmt.Errorf("transfer of unknown asset %d", id)
	}
	if a.Owner != from {
		return fmt.Errorf("transfer of asset %d from %s but owned by %s", id, from, a.Owner)
	}
	a.Owner = to
	key := append([]byte(prefixAssetPayload), idToBytes(id)...)
	err = txn.Set(key, MsgpackMarshalPanic(a))
	if err != nil {
		return err
	}
	err = txn.Delete(buildAssetOwnerKey(from, id))
	if err != nil {
		return err
	}
	err = txn.Set(buildAssetOwnerKey(to, id), []byte{1})
	if err != nil {
		return err
	}
	return txn.Delete(append([]byte(prefixAssetApprove), idToBytes(id)...))
}

func (bs *BadgerStore) readAsset(txn *badger.Txn, id uint64) (*market.Asset, error) {
	key := append([]byte(prefixAssetPayload), idToBytes(id)...)
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
	var a market.Asset
	err = MsgpackUnmarshal(val, &a)
	return &a, err
}

func (bs *BadgerStore) readAssetApproval(txn *badger.Txn, id uint64) (string, error) {
	key := append([]byte(prefixAssetApprove), idToBytes(id)...)
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return "", nil
	} else if err != nil {
		return "", err
	}
	val, err := item.ValueCopy(nil)
	return string(val), err
}

func buildAssetOwnerKey(owner string, id uint64) []byte {
	key := []byte(prefixAssetOwner + escapeKeyPart(owner) + ":")
	return append(key, idToBytes(id)...)
}
