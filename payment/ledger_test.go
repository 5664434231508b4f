package payment

import (
	"testing"

	"github.com/dgraph-io/badger/v3"
	"github.com/kokirinetwork/shop/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testLedger(t *testing.T) *Ledger {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.WARNING))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	lg := NewLedger(db, "GYA")
	require.NoError(t, lg.Bootstrap("issuer"))
	return lg
}

func TestLedgerIssue(t *testing.T) {
	require := require.New(t)
	lg := testLedger(t)

	err := lg.Issue("alice", "alice", decimal.NewFromInt(100))
	require.ErrorIs(err, market.ErrUnauthorized)
	err = lg.Issue("issuer", "alice", decimal.Zero)
	require.ErrorIs(err, market.ErrInvalidArgument)

	err = lg.Issue("issuer", "alice", decimal.NewFromInt(100))
	require.NoError(err)
	balance, err := lg.BalanceOf("alice")
	require.NoError(err)
	require.True(balance.Equal(decimal.NewFromInt(100)))

	// the issuer slot is claimed once
	err = lg.Bootstrap("alice")
	require.NoError(err)
	err = lg.Issue("alice", "alice", decimal.NewFromInt(1))
	require.ErrorIs(err, market.ErrUnauthorized)
}

func TestLedgerTransfer(t *testing.T) {
	require := require.New(t)
	lg := testLedger(t)

	require.NoError(lg.Issue("issuer", "alice", decimal.NewFromInt(100)))

	err := lg.Transfer("alice", "bob", decimal.NewFromInt(120))
	require.ErrorIs(err, market.ErrInsufficientFunds)

	err = lg.Transfer("alice", "bob", decimal.NewFromInt(40))
	require.NoError(err)
	balance, err := lg.BalanceOf("alice")
	require.NoError(err)
	require.True(balance.Equal(decimal.NewFromInt(60)))
	balance, err = lg.BalanceOf("bob")
	require.NoError(err)
	require.True(balance.Equal(decimal.NewFromInt(40)))
}

func TestLedgerAllowanceKeyIsolation(t *testing.T) {
	require := require.New(t)
	lg := testLedger(t)

	// ("x:y" -> "z") and ("x" -> "y:z") must not share a slot
	require.NoError(lg.Approve("x:y", "z", decimal.NewFromInt(50)))
	allowance, err := lg.Allowance("x", "y:z")
	require.NoError(err)
	require.True(allowance.IsZero())
	allowance, err = lg.Allowance("x:y", "z")
	require.NoError(err)
	require.True(allowance.Equal(decimal.NewFromInt(50)))

	require.NoError(lg.Issue("issuer", "x", decimal.NewFromInt(100)))
	err = lg.TransferFrom("y:z", "x", "bob", decimal.NewFromInt(10))
	require.ErrorIs(err, market.ErrInsufficientFunds)
}

func TestLedgerTransferFrom(t *testing.T) {
	require := require.New(t)
	lg := testLedger(t)

	require.NoError(lg.Issue("issuer", "alice", decimal.NewFromInt(100)))

	// no allowance yet
	err := lg.TransferFrom("shop", "alice", "bob", decimal.NewFromInt(30))
	require.ErrorIs(err, market.ErrInsufficientFunds)

	require.NoError(lg.Approve("alice", "shop", decimal.NewFromInt(50)))
	allowance, err := lg.Allowance("alice", "shop")
	require.NoError(err)
	require.True(allowance.Equal(decimal.NewFromInt(50)))

	err = lg.TransferFrom("shop", "alice", "bob", decimal.NewFromInt(30))
	require.NoError(err)
	balance, err := lg.BalanceOf("bob")
	require.NoError(err)
	require.True(balance.Equal(decimal.NewFromInt(30)))
	allowance, err = lg.Allowance("alice", "shop")
	require.NoError(err)
	require.True(allowance.Equal(decimal.NewFromInt(20)))

	// the remaining allowance is not enough
	err = lg.TransferFrom("shop", "alice", "bob", decimal.NewFromInt(30))
	require.ErrorIs(err, market.ErrInsufficientFunds)

	// allowance is enough but the balance is not
	require.NoError(lg.Approve("alice", "shop", decimal.NewFromInt(1000)))
	err = lg.TransferFrom("shop", "alice", "bob", decimal.NewFromInt(500))
	require.ErrorIs(err, market.ErrInsufficientFunds)
	balance, err = lg.BalanceOf("alice")
	require.NoError(err)
	require.True(balance.Equal(decimal.NewFromInt(70)))
}
