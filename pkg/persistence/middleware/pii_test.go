package middleware_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/weft/pkg/adapters/memory"
	"github.com/aretw0/weft/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewPIIMiddleware([]string{"(?i)password", "^email$"})
	require.NoError(t, err)
	store := mw(underlying)
	ctx := context.Background()

	payload := []byte(`{"messages":{"m1":{"email":"a@b.c","Password":"hunter2","note":"ok"}},"list":[{"password":"x"}]}`)
	require.NoError(t, store.Save(ctx, "s", payload))

	raw, err := underlying.Load(ctx, "s")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	m1 := doc["messages"].(map[string]any)["m1"].(map[string]any)
	assert.Equal(t, middleware.Mask, m1["email"])
	assert.Equal(t, middleware.Mask, m1["Password"])
	assert.Equal(t, "ok", m1["note"])
	item := doc["list"].([]any)[0].(map[string]any)
	assert.Equal(t, middleware.Mask, item["password"])
}

func TestPIIMiddleware_NonJSONPassesThrough(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewPIIMiddleware([]string{"password"})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, mw(underlying).Save(ctx, "s", []byte("opaque")))
	raw, err := underlying.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []byte("opaque"), raw)
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewPIIMiddleware([]string{"("})
	assert.Error(t, err)
}

func TestChain_OrdersOutermostFirst(t *testing.T) {
	underlying := memory.NewStore()
	pii, err := middleware.NewPIIMiddleware([]string{"secret"})
	require.NoError(t, err)
	enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)

	store := middleware.Chain(underlying, pii, enc)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "s", []byte(`{"secret":"v"}`)))

	loaded, err := store.Load(ctx, "s")
	require.NoError(t, err)
	assert.JSONEq(t, `{"secret":"***"}`, string(loaded))
}
