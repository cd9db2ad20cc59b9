package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	secret := []byte("test-gateway-secret")
	sig := Signature("order_abc", "pay_123", secret)
	require.Len(t, sig, 64)

	assert.True(t, VerifySignature("order_abc", "pay_123", sig, secret))
	assert.False(t, VerifySignature("order_abc", "pay_124", sig, secret))
	assert.False(t, VerifySignature("order_abd", "pay_123", sig, secret))
	assert.False(t, VerifySignature("order_abc", "pay_123", sig, []byte("wrong-secret")))
}

func TestVerifySignature_SingleCharacterMutation(t *testing.T) {
	t.Parallel()

	secret := []byte("test-gateway-secret")
	sig := Signature("order_abc", "pay_123", secret)

	for i := 0; i < len(sig); i++ {
		mutated := []byte(sig)
		if mutated[i] == 'a' {
			mutated[i] = 'b'
		} else {
			mutated[i] = 'a'
		}
		assert.False(t, VerifySignature("order_abc", "pay_123", string(mutated), secret),
			"mutation at position %d must fail", i)
	}
}

func TestClient_CreateIntent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/orders", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "key_id", user)
		require.Equal(t, "key_secret", pass)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.EqualValues(t, 123900, req["amount"])
		require.Equal(t, "INR", req["currency"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "order_test_1"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key_id", "key_secret")
	id, err := c.CreateIntent(context.Background(), 123900, "INR")
	require.NoError(t, err)
	assert.Equal(t, "order_test_1", id)
}

func TestClient_CreateIntent_GatewayDown(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key_id", "key_secret")
	_, err := c.CreateIntent(context.Background(), 100, "INR")
	require.ErrorIs(t, err, ErrGateway)
}
