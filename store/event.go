package store

import (
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/kokirinetwork/shop/market"
	"github.com/shopspring/decimal"
)

const prefixEventQueue = "MARKET:EVENT:QUEUE:"

type eventPayload struct {
	Id        string
	Name      string
	AssetId   uint64
	From      string
	To        string
	URI       string
	Price     string
	Role      string
	CreatedAt time.Time
}

func (bs *BadgerStore) WriteEvent(e *market.Event) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		key := append([]byte(prefixEventQueue), tsToBytes(e.CreatedAt)...)
		key = append(key, []byte(e.Id)...)
		val := MsgpackMarshalPanic(&eventPayload{
			Id:        e.Id,
			Name:      e.Name,
			AssetId:   e.AssetId,
			From:      e.From,
			To:        e.To,
			URI:       e.URI,
			Price:     e.Price.String(),
			Role:      e.Role,
			CreatedAt: e.CreatedAt,
		})
		return txn.Set(key, val)
	})
}

func (bs *BadgerStore) ListEvents(limit int) ([]*market.Event, error) {
	txn := bs.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixEventQueue)
	it := txn.NewIterator(opts)
	defer it.Close()

	var events []*market.Event
	for it.Seek(opts.Prefix); it.Valid(); it.Next() {
		val, err := it.Item().ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		var p eventPayload
		err = MsgpackUnmarshal(val, &p)
		if err != nil {
			return nil, err
		}
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, err
		}
		events = append(events, &market.Event{
			Id:        p.Id,
			Name:      p.Name,
			AssetId:   p.AssetId,
			From:      p.From,
			To:        p.To,
			URI:       p.URI,
			Price:     price,
			Role:      p.Role,
			CreatedAt: p.CreatedAt,
		})
		if len(events) == limit {
			break
		}
	}
	return events, nil
}
