package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostedCheckoutCreateSession(t *testing.T) {
	var got sessionPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"order":{"ref":"REF1","url":"https://pay.test/s/REF1"}}`))
	}))
	defer srv.Close()

	gw := NewHostedCheckout(srv.URL, "key-1", "https://shop.test/orders")
	session, err := gw.CreateSession(context.Background(), SessionRequest{
		OrderID: "o1", Amount: 121, Currency: "INR", Method: "UPI",
	})
	require.NoError(t, err)
	assert.Equal(t, "REF1", session.Reference)
	assert.Equal(t, "https://pay.test/s/REF1", session.URL)
	assert.Equal(t, "121.00", got.Order.Amount)
	assert.Equal(t, "o1", got.Order.CartID)
	assert.Contains(t, got.Return.Declined, "payment=declined")
}

func TestHostedCheckoutErrors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		},
		"gateway error": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error":{"code":"E01","message":"bad store"}}`))
		},
		"empty session": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"order":{}}`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()
			_, err := NewHostedCheckout(srv.URL, "k", "https://shop.test").CreateSession(context.Background(), SessionRequest{OrderID: "o1"})
			assert.Error(t, err)
		})
	}
}

func TestSandboxSession(t *testing.T) {
	s, err := Sandbox{ReturnURL: "http://localhost/orders"}.CreateSession(context.Background(), SessionRequest{OrderID: "o9"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(s.Reference, "sbx_"))
	assert.Contains(t, s.URL, "orderId=o9")
}

func TestSignatureRoundTrip(t *testing.T) {
	body := []byte(`{"orderId":"o1","reference":"r","status":"success"}`)
	sig := Sign("s3cret", body)

	assert.NoError(t, Verify("s3cret", body, sig))
	assert.NoError(t, Verify("s3cret", body, "sha256="+sig))
	assert.ErrorIs(t, Verify("other", body, sig), ErrBadSignature)
	assert.ErrorIs(t, Verify("s3cret", []byte("tampered"), sig), ErrBadSignature)
	assert.ErrorIs(t, Verify("s3cret", body, "zz"), ErrBadSignature)
	assert.Error(t, Verify("", body, sig))
}
