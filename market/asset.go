package market

import (
	"time"

	"go.uber.org/zap"
)

// AssetLedger owns the asset table: identifier, current owner and the
// immutable metadata URI set at mint. Minting is gated by the minter
// role, transfers by ownership or an explicit per-asset approval.
type AssetLedger struct {
	store Store
	roles *AccessControl
	log   *zap.SugaredLogger
}

func NewAssetLedger(store Store, roles *AccessControl, log *zap.SugaredLogger) *AssetLedger {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &AssetLedger{
		store: store,
		roles: roles,
		log:   log,
	}
}

func (al *AssetLedger) Mint(caller, to, uri string) (uint64, error) {
	minter, err := al.roles.Holder(RoleMinter)
	if err != nil {
		return 0, err
	}
	if caller == "" || caller != minter {
		return 0, Errorf(ErrUnauthorized, "mint requires the minter role held by %s", minter)
	}
	if to == "" {
		return 0, Errorf(ErrInvalidArgument, "empty mint receiver")
	}
	id, err := al.store.NextAssetId()
	if err != nil {
		return 0, err
	}
	asset := &Asset{
		Id:        id,
		Owner:     to,
		URI:       uri,
		CreatedAt: time.Now(),
	}
	err = al.store.WriteAsset(asset)
	if err != nil {
		return 0, err
	}
	evt := newEvent(EventMinted)
	evt.AssetId = id
	evt.To = to
	evt.URI = uri
	err = al.store.WriteEvent(evt)
	if err != nil {
		return 0, err
	}
	al.log.Infow("asset minted", "id", id, "to", to, "uri", uri)
	return id, nil
}

// Transfer moves an asset to a new owner. The caller must be the
// current owner or the operator approved for this asset; a successful
// transfer clears the approval.
func (al *AssetLedger) Transfer(caller, to string, id uint64) error {
	asset, err := al.store.ReadAsset(id)
	if err != nil {
		return err
	}
	if asset == nil {
		return Errorf(ErrNotFound, "asset %d", id)
	}
	if to == "" {
		return Errorf(ErrInvalidArgument, "empty transfer receiver")
	}
	if caller != asset.Owner {
		operator, err := al.store.ReadAssetApproval(id)
		if err != nil {
			return err
		}
		if caller == "" || caller != operator {
			return Errorf(ErrUnauthorized, "transfer of asset %d requires its owner or approved operator", id)
		}
	}
	err = al.store.TransferAsset(id, asset.Owner, to)
	if err != nil {
		return err
	}
	evt := newEvent(EventTransferred)
	evt.AssetId = id
	evt.From = asset.Owner
	evt.To = to
	err = al.store.WriteEvent(evt)
	if err != nil {
		return err
	}
	al.log.Infow("asset transferred", "id", id, "from", asset.Owner, "to", to)
	return nil
}

// Approve grants operator the right to transfer this one asset on the
// owner's behalf. An empty operator revokes the grant.
func (al *AssetLedger) Approve(caller, operator string, id uint64) error {
	asset, err := al.store.ReadAsset(id)
	if err != nil {
		return err
	}
	if asset == nil {
		return Errorf(ErrNotFound, "asset %d", id)
	}
	if caller == "" || caller != asset.Owner {
		return Errorf(ErrUnauthorized, "approval of asset %d requires its owner", id)
	}
	return al.store.ApproveAsset(id, operator)
}

func (al *AssetLedger) OwnerOf(id uint64) (string, error) {
	asset, err := al.store.ReadAsset(id)
	if err != nil {
		return "", err
	}
	if asset == nil {
		return "", Errorf(ErrNotFound, "asset %d", id)
	}
	return asset.Owner, nil
}

func (al *AssetLedger) URIOf(id uint64) (string, error) {
	asset, err := al.store.ReadAsset(id)
	if err != nil {
		return "", err
	}
	if asset == nil {
		return "", Errorf(ErrNotFound, "asset %d", id)
	}
	return asset.URI, nil
}

func (al *AssetLedger) OwnedBy(owner string) ([]uint64, error) {
	var ids []uint64
	err := al.EachOwnedBy(owner, func(a *Asset) bool {
		ids = append(ids, a.Id)
		return true
	})
	return ids, err
}

// EachOwnedBy walks a snapshot of the owner's current set. The walk is
// restartable; order is the index order of the owned set.
func (al *AssetLedger) EachOwnedBy(owner string, fn func(*Asset) bool) error {
	assets, err := al.store.ListAssetsByOwner(owner, 0)
	if err != nil {
		return err
	}
	for _, a := range assets {
		if !fn(a) {
			break
		}
	}
	return nil
}

func (al *AssetLedger) SetMinter(caller, minter string) error {
	return al.roles.Grant(caller, RoleMinter, minter)
}
