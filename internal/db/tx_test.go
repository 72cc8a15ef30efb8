package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTx satisfies pgx.Tx; only identity matters here.
type fakeTx struct {
	pgx.Tx
}

func TestConn_FallbackWithoutTx(t *testing.T) {
	var fallback Querier = &fakeTx{}

	got := Conn(context.Background(), fallback)

	assert.Same(t, fallback, got)
}

func TestConn_PrefersTxFromContext(t *testing.T) {
	tx := &fakeTx{}
	ctx := context.WithValue(context.Background(), txKey{}, pgx.Tx(tx))

	got := Conn(ctx, &fakeTx{})

	assert.Same(t, tx, got)
}

func TestWithinTx_JoinsExistingTx(t *testing.T) {
	tx := &fakeTx{}
	ctx := context.WithValue(context.Background(), txKey{}, pgx.Tx(tx))

	// pool is nil: joining must not try to begin a new transaction
	transactor := NewTransactor(nil)

	called := false
	err := transactor.WithinTx(ctx, func(inner context.Context) error {
		called = true
		assert.Same(t, tx, Conn(inner, nil))
		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)
}
