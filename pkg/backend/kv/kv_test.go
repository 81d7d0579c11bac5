package kv_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/esr/pkg/backend/kv"
	"github.com/secmon-lab/esr/pkg/domain/interfaces"
)

func TestStoreAndRetrieve(t *testing.T) {
	b := kv.New("test")
	ctx := context.Background()

	gt.NoError(t, b.Store(ctx, "k1", []byte("value"), map[string]string{"ns": "esr"}))

	value, err := b.Retrieve(ctx, "k1")
	gt.NoError(t, err).Required()
	gt.Value(t, string(value)).Equal("value")
}

func TestRetrieveNotFound(t *testing.T) {
	b := kv.New("test")

	_, err := b.Retrieve(context.Background(), "missing")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, interfaces.ErrNotFound))
}

func TestStoreRequiresKey(t *testing.T) {
	b := kv.New("test")
	gt.Error(t, b.Store(context.Background(), "", []byte("v"), nil))
}

func TestStoreOverwrites(t *testing.T) {
	b := kv.New("test")
	ctx := context.Background()

	gt.NoError(t, b.Store(ctx, "k1", []byte("old"), nil))
	gt.NoError(t, b.Store(ctx, "k1", []byte("new"), nil))

	value, err := b.Retrieve(ctx, "k1")
	gt.NoError(t, err).Required()
	gt.Value(t, string(value)).Equal("new")
	gt.Number(t, b.Len()).Equal(1)
}

func TestRetrieveReturnsCopy(t *testing.T) {
	b := kv.New("test")
	ctx := context.Background()

	gt.NoError(t, b.Store(ctx, "k1", []byte("immutable"), nil))

	value, err := b.Retrieve(ctx, "k1")
	gt.NoError(t, err).Required()
	value[0] = 'X'

	again, err := b.Retrieve(ctx, "k1")
	gt.NoError(t, err).Required()
	gt.Value(t, string(again)).Equal("immutable")
}

func TestSearch(t *testing.T) {
	b := kv.New("test")
	ctx := context.Background()

	gt.NoError(t, b.Store(ctx, "k1", []byte("the deploy finished at noon"), nil))
	gt.NoError(t, b.Store(ctx, "k2", []byte("lunch was good"), nil))
	gt.NoError(t, b.Store(ctx, "k3", []byte("DEPLOY failed yesterday"), nil))

	results, err := b.Search(ctx, "deploy", 10)
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(2)

	limited, err := b.Search(ctx, "deploy", 1)
	gt.NoError(t, err).Required()
	gt.Array(t, limited).Length(1)

	none, err := b.Search(ctx, "breakfast", 10)
	gt.NoError(t, err).Required()
	gt.Array(t, none).Length(0)
}
