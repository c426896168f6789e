package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"

	"catalog-cart-service/internal/cart"
	"catalog-cart-service/internal/config"
	"catalog-cart-service/internal/domain"
	"catalog-cart-service/internal/store"
)

var (
	lamp  = domain.Item{ID: 1, Title: "Lamp", Price: 20, Thumbnail: "https://cdn.example.com/1.jpg"}
	chair = domain.Item{ID: 2, Title: "Chair", Price: 45.5}
)

func newFilledCart(t *testing.T) *cart.Store {
	t.Helper()
	s := cart.New(store.NewMemoryStore(), zaptest.NewLogger(t))
	for _, it := range []domain.Item{lamp, chair} {
		_, err := s.Add(context.Background(), it)
		require.NoError(t, err)
	}
	return s
}

func TestListCart_JSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, listCart(&out, newFilledCart(t), "json"))

	var got []domain.CartEntry
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, []domain.CartEntry{lamp, chair}, got)
}

func TestListCart_YAML(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, listCart(&out, newFilledCart(t), "yaml"))

	var got []domain.CartEntry
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, []domain.CartEntry{lamp, chair}, got)
	assert.Contains(t, out.String(), "title: Lamp")
}

func TestListCart_UnknownFormat(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, listCart(&out, newFilledCart(t), "xml"))
}

func TestRemoveFromCart(t *testing.T) {
	s := newFilledCart(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, removeFromCart(ctx, &out, s, "1"))
	assert.Equal(t, "removed item 1\n", out.String())
	assert.False(t, s.Contains(1))

	out.Reset()
	require.NoError(t, removeFromCart(ctx, &out, s, "1"))
	assert.Equal(t, "item 1 was not in the cart\n", out.String())

	assert.Error(t, removeFromCart(ctx, &out, s, "lamp"))
	assert.Error(t, removeFromCart(ctx, &out, s, "0"))
}

func TestWithCart_SQLitePersistsBetweenRuns(t *testing.T) {
	logger = zap.NewNop()
	cfg = &config.Config{
		Catalog: config.CatalogConfig{Source: config.CatalogSourceHTTP},
		Cart: config.CartConfig{
			Driver:     config.CartDriverSQLite,
			SQLitePath: filepath.Join(t.TempDir(), "cart.db"),
		},
	}
	defer func() { cfg, logger = nil, nil }()
	ctx := context.Background()

	require.NoError(t, withCart(ctx, func(s *cart.Store) error {
		_, err := s.Add(ctx, lamp)
		return err
	}))

	require.NoError(t, withCart(ctx, func(s *cart.Store) error {
		assert.Equal(t, []domain.CartEntry{lamp}, s.List())
		return nil
	}))
}

func TestOpenCartStore_Drivers(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	memCfg := &config.Config{Cart: config.CartConfig{Driver: config.CartDriverMemory}}
	kv, err := openCartStore(ctx, memCfg, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryStore{}, kv)
	require.NoError(t, kv.Close())

	pgCfg := &config.Config{Cart: config.CartConfig{Driver: config.CartDriverPostgres}}
	_, err = openCartStore(ctx, pgCfg, nil, logger)
	assert.Error(t, err, "postgres driver without a connection")

	badCfg := &config.Config{Cart: config.CartConfig{Driver: "redis"}}
	_, err = openCartStore(ctx, badCfg, nil, logger)
	assert.Error(t, err)
}

func TestNewCatalogSource(t *testing.T) {
	logger := zaptest.NewLogger(t)

	httpCfg := &config.Config{Catalog: config.CatalogConfig{
		Source:  config.CatalogSourceHTTP,
		BaseURL: "https://dummyjson.com",
	}}
	src, err := newCatalogSource(httpCfg, nil, logger)
	require.NoError(t, err)
	assert.NotNil(t, src)

	pgCfg := &config.Config{Catalog: config.CatalogConfig{Source: config.CatalogSourcePostgres}}
	_, err = newCatalogSource(pgCfg, nil, logger)
	assert.Error(t, err)
}
