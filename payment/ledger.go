package payment

import (
	"strings"

	"github.com/dgraph-io/badger/v3"
	"github.com/kokirinetwork/shop/market"
	"github.com/shopspring/decimal"
)

const (
	prefixBalance   = "TOKEN:BALANCE:"
	prefixAllowance = "TOKEN:ALLOWANCE:"

	propertyIssuer = "TOKEN:ISSUER"
)

// Ledger is the fungible payment token the shop settles against:
// balances, allowances and an issue operation gated by a single
// issuer. It satisfies market.PaymentLedger.
type Ledger struct {
	symbol string
	db     *badger.DB
}

func NewLedger(db *badger.DB, symbol string) *Ledger {
	return &Ledger{
		symbol: symbol,
		db:     db,
	}
}

func (lg *Ledger) Symbol() string {
	return lg.symbol
}

// Bootstrap claims the issuer slot if nobody holds it yet.
func (lg *Ledger) Bootstrap(issuer string) error {
	if issuer == "" {
		return market.Errorf(market.ErrInvalidArgument, "empty issuer")
	}
	return lg.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(propertyIssuer))
		if err == badger.ErrKeyNotFound {
			return txn.Set([]byte(propertyIssuer), []byte(issuer))
		}
		return err
	})
}

func (lg *Ledger) Issue(caller, to string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return market.Errorf(market.ErrInvalidArgument, "amount %s must be positive", amount)
	}
	return lg.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(propertyIssuer))
		if err != nil {
			return err
		}
		issuer, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if caller == "" || caller != string(issuer) {
			return market.Errorf(market.ErrUnauthorized, "%s issue requires the issuer", lg.symbol)
		}
		balance, err := readAmount(txn, balanceKey(to))
		if err != nil {
			return err
		}
		return writeAmount(txn, balanceKey(to), balance.Add(amount))
	})
}

func (lg *Ledger) Transfer(caller, to string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return market.Errorf(market.ErrInvalidArgument, "amount %s must be positive", amount)
	}
	return lg.db.Update(func(txn *badger.Txn) error {
		return move(txn, caller, to, amount)
	})
}

func (lg *Ledger) Approve(caller, spender string, amount decimal.Decimal) error {
	if amount.Sign() < 0 {
		return market.Errorf(market.ErrInvalidArgument, "allowance %s must not be negative", amount)
	}
	return lg.db.Update(func(txn *badger.Txn) error {
		return writeAmount(txn, allowanceKey(caller, spender), amount)
	})
}

// TransferFrom spends the allowance from has granted to spender. The
// balance move and the allowance decrement commit together or not at
// all.
func (lg *Ledger) TransferFrom(spender, from, to string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return market.Errorf(market.ErrInvalidArgument, "amount %s must be positive", amount)
	}
	return lg.db.Update(func(txn *badger.Txn) error {
		allowance, err := readAmount(txn, allowanceKey(from, spender))
		if err != nil {
			return err
		}
		if allowance.Cmp(amount) < 0 {
			return market.Errorf(market.ErrInsufficientFunds, "%s allowance %s of %s for %s", lg.symbol, allowance, from, spender)
		}
		err = writeAmount(txn, allowanceKey(from, spender), allowance.Sub(amount))
		if err != nil {
			return err
		}
		return move(txn, from, to, amount)
	})
}

func (lg *Ledger) BalanceOf(account string) (decimal.Decimal, error) {
	txn := lg.db.NewTransaction(false)
	defer txn.Discard()

	return readAmount(txn, balanceKey(account))
}

func (lg *Ledger) Allowance(owner, spender string) (decimal.Decimal, error) {
	txn := lg.db.NewTransaction(false)
	defer txn.Discard()

	return readAmount(txn, allowanceKey(owner, spender))
}

func move(txn *badger.Txn, from, to string, amount decimal.Decimal) error {
	balance, err := readAmount(txn, balanceKey(from))
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return market.Errorf(market.ErrInsufficientFunds, "balance %s of %s", balance, from)
	}
	err = writeAmount(txn, balanceKey(from), balance.Sub(amount))
	if err != nil {
		return err
	}
	balance, err = readAmount(txn, balanceKey(to))
	if err != nil {
		return err
	}
	return writeAmount(txn, balanceKey(to), balance.Add(amount))
}

func readAmount(txn *badger.Txn, key []byte) (decimal.Decimal, error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return decimal.Zero, nil
	} else if err != nil {
		return decimal.Zero, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(string(val))
}

func writeAmount(txn *badger.Txn, key []byte, amount decimal.Decimal) error {
	return txn.Set(key, []byte(amount.String()))
}

// Accounts are arbitrary strings, so the composite allowance key
// escapes both parts: without it ("x:y", "z") and ("x", "y:z") would
// share a slot and leak spending allowance across accounts.
var keyEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

func balanceKey(account string) []byte {
	return []byte(prefixBalance + account)
}

func allowanceKey(owner, spender string) []byte {
	return []byte(prefixAllowance + keyEscaper.Replace(owner) + ":" + keyEscaper.Replace(spender))
}
