package market

import "strings"

const (
	RoleMinter = "minter"
	RoleAdmin  = "admin"

	prefixRoleProperty = "MARKET:ROLE:"
)

// AccessControl keeps the two single-slot roles. Each slot is mutable
// only by its current holder, except for the genesis bootstrap.
type AccessControl struct {
	store Store
}

func NewAccessControl(store Store) *AccessControl {
	return &AccessControl{store: store}
}

// Bootstrap writes the genesis holders, but never overwrites a slot
// that was already claimed, so a restart with a changed configuration
// cannot hijack a role.
func (ac *AccessControl) Bootstrap(minter, admin string) error {
	for role, holder := range map[string]string{RoleMinter: minter, RoleAdmin: admin} {
		if holder == "" {
			return Errorf(ErrInvalidArgument, "empty genesis holder for role %s", role)
		}
		old, err := ac.Holder(role)
		if err != nil {
			return err
		}
		if old != "" {
			continue
		}
		err = ac.store.WriteProperty(rolePropertyKey(role), []byte(holder))
		if err != nil {
			return err
		}
	}
	return nil
}

func (ac *AccessControl) Holder(role string) (string, error) {
	val, err := ac.store.ReadProperty(rolePropertyKey(role))
	return string(val), err
}

func (ac *AccessControl) Grant(caller, role, holder string) error {
	if holder == "" {
		return Errorf(ErrInvalidArgument, "empty holder for role %s", role)
	}
	old, err := ac.Holder(role)
	if err != nil {
		return err
	}
	if caller == "" || caller != old {
		return Errorf(ErrUnauthorized, "role %s is held by %s not %s", role, old, caller)
	}
	err = ac.store.WriteProperty(rolePropertyKey(role), []byte(holder))
	if err != nil {
		return err
	}
	evt := newEvent(EventRoleChanged)
	evt.Role = role
	evt.To = holder
	evt.From = old
	return ac.store.WriteEvent(evt)
}

func rolePropertyKey(role string) []byte {
	return []byte(prefixRoleProperty + strings.ToUpper(role))
}
