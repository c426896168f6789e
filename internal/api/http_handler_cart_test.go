package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"catalog-cart-service/internal/domain"
)

var lamp = domain.Item{ID: 1, Title: "Lamp", Price: 20, Thumbnail: "https://cdn.example.com/1.jpg"}

func TestHTTPHandler_ListCart(t *testing.T) {
	server, deps := setupTestChiServer(t)
	defer server.Close()

	chair := domain.Item{ID: 2, Title: "Chair", Price: 45.5}
	deps.cart.On("List").Return([]domain.CartEntry{lamp, chair}).Once()

	res, err := http.Get(server.URL + "/api/v1/cart")
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	var payload CartResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&payload))
	assert.Equal(t, 2, payload.Count)
	assert.Equal(t, []domain.CartEntry{lamp, chair}, payload.Items)
	deps.assertExpectations(t)
}

func TestHTTPHandler_ListCart_EmptyIsArray(t *testing.T) {
	server, deps := setupTestChiServer(t)
	defer server.Close()

	deps.cart.On("List").Return(nil).Once()

	res, err := http.Get(server.URL + "/api/v1/cart")
	require.NoError(t, err)
	defer res.Body.Close()

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(res.Body).Decode(&raw))
	assert.JSONEq(t, `[]`, string(raw["items"]))
	deps.assertExpectations(t)
}

func TestHTTPHandler_AddToCart(t *testing.T) {
	server, deps := setupTestChiServer(t)
	defer server.Close()

	deps.cart.On("Add", mock.Anything, lamp).Return(true, nil).Once()
	deps.cart.On("Add", mock.Anything, lamp).Return(false, nil).Once()

	input := CartItemInput{ID: lamp.ID, Title: lamp.Title, Price: lamp.Price, Thumbnail: lamp.Thumbnail}

	res := doJSON(t, http.MethodPost, server.URL+"/api/v1/cart", input)
	var first AddToCartResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&first))
	res.Body.Close()
	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.True(t, first.Added)
	assert.Equal(t, lamp, first.Item)

	res = doJSON(t, http.MethodPost, server.URL+"/api/v1/cart", input)
	var second AddToCartResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&second))
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode, "adding a present item is a no-op")
	assert.False(t, second.Added)

	deps.assertExpectations(t)
}

func TestHTTPHandler_AddToCart_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input CartItemInput
	}{
		{"missing id", CartItemInput{Title: "Lamp", Price: 20}},
		{"negative id", CartItemInput{ID: -4, Title: "Lamp"}},
		{"missing title", CartItemInput{ID: 1, Price: 20}},
		{"negative price", CartItemInput{ID: 1, Title: "Lamp", Price: -1}},
		{"thumbnail not a url", CartItemInput{ID: 1, Title: "Lamp", Thumbnail: "lamp.jpg"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, deps := setupTestChiServer(t)
			defer server.Close()

			res := doJSON(t, http.MethodPost, server.URL+"/api/v1/cart", tt.input)
			defer res.Body.Close()

			assert.Equal(t, http.StatusBadRequest, res.StatusCode)
			var errResp ErrorResponse
			require.NoError(t, json.NewDecoder(res.Body).Decode(&errResp))
			assert.Contains(t, errResp.Error, "Validation failed")
			deps.assertExpectations(t)
		})
	}
}

func TestHTTPHandler_AddToCart_StoreError(t *testing.T) {
	server, deps := setupTestChiServer(t)
	defer server.Close()

	deps.cart.On("Add", mock.Anything, lamp).Return(false, errors.New("disk full")).Once()

	input := CartItemInput{ID: lamp.ID, Title: lamp.Title, Price: lamp.Price, Thumbnail: lamp.Thumbnail}
	res := doJSON(t, http.MethodPost, server.URL+"/api/v1/cart", input)
	defer res.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&errResp))
	assert.Equal(t, "Failed to add item to cart", errResp.Error)
	deps.assertExpectations(t)
}

func TestHTTPHandler_CartContains(t *testing.T) {
	server, deps := setupTestChiServer(t)
	defer server.Close()

	deps.cart.On("Contains", int64(1)).Return(true).Once()
	deps.cart.On("Contains", int64(99)).Return(false).Once()

	for id, want := range map[int64]bool{1: true, 99: false} {
		res, err := http.Get(server.URL + fmt.Sprintf("/api/v1/cart/%d", id))
		require.NoError(t, err)

		var payload ContainsResponse
		require.NoError(t, json.NewDecoder(res.Body).Decode(&payload))
		res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, id, payload.ID)
		assert.Equal(t, want, payload.InCart)
	}
	deps.assertExpectations(t)
}

func TestHTTPHandler_RemoveFromCart(t *testing.T) {
	server, deps := setupTestChiServer(t)
	defer server.Close()

	// Removing an absent id succeeds as well.
	deps.cart.On("Remove", mock.Anything, int64(1)).Return(nil).Twice()

	for i := 0; i < 2; i++ {
		res := doJSON(t, http.MethodDelete, server.URL+"/api/v1/cart/1", nil)
		res.Body.Close()
		assert.Equal(t, http.StatusNoContent, res.StatusCode)
	}
	deps.assertExpectations(t)
}

func TestHTTPHandler_RemoveFromCart_InvalidID(t *testing.T) {
	server, deps := setupTestChiServer(t)
	defer server.Close()

	for _, id := range []string{"abc", "0", "-3"} {
		res := doJSON(t, http.MethodDelete, server.URL+"/api/v1/cart/"+id, nil)
		res.Body.Close()
		assert.Equal(t, http.StatusBadRequest, res.StatusCode, id)
	}
	deps.assertExpectations(t)
}

func TestHTTPHandler_RemoveFromCart_StoreError(t *testing.T) {
	server, deps := setupTestChiServer(t)
	defer server.Close()

	deps.cart.On("Remove", mock.Anything, int64(7)).Return(errors.New("read-only")).Once()

	res := doJSON(t, http.MethodDelete, server.URL+"/api/v1/cart/7", nil)
	defer res.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	deps.assertExpectations(t)
}
