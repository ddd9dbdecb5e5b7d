package storefront

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/rafflehouse-backend/internal/cart"
	"github.com/angelmondragon/rafflehouse-backend/internal/cartsync"
	"github.com/angelmondragon/rafflehouse-backend/internal/checkout"
	"github.com/angelmondragon/rafflehouse-backend/internal/entry"
	pkgcheckout "github.com/angelmondragon/rafflehouse-backend/pkg/checkout"
	pkgerrors "github.com/angelmondragon/rafflehouse-backend/pkg/errors"
)

var (
	_ cartsync.Transport = (*Client)(nil)
	_ entry.Transport    = (*Client)(nil)
	_ checkout.Transport = (*Client)(nil)
)

func writeEnvelope(t *testing.T, w http.ResponseWriter, status int, data any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"data": data}))
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": code, "message": message}})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL, WithToken("tok"), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient("  ")
	assert.ErrorIs(t, err, errBaseURLRequired)
}

func TestFetchCartMissingIsNil(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/cart", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeAPIError(w, http.StatusNotFound, string(pkgerrors.CodeNotFound), "cart not found")
	})

	got, err := client.FetchCart(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFetchCartDecodesEnvelope(t *testing.T) {
	itemID := uuid.New()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, http.StatusOK, map[string]any{
			"id":       uuid.NewString(),
			"items":    []map[string]any{{"id": itemID, "competitionId": uuid.NewString(), "unitPrice": "2.50", "quantity": 2}},
			"totals":   map[string]any{"itemCount": 1, "subtotal": "5.00", "totalTickets": 2},
			"currency": "GBP",
		})
	})

	got, err := client.FetchCart(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Items, 1)
	assert.Equal(t, itemID, got.Items[0].ID)
	assert.Equal(t, 2, got.Totals.TotalTickets)
}

func TestAddItemSendsIdempotencyKey(t *testing.T) {
	competitionID := uuid.New()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/cart/items", r.URL.Path)
		assert.Equal(t, "fixed-key", r.Header.Get("Idempotency-Key"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"competitionId":"`+competitionID.String()+`","quantity":3}`, string(raw))
		writeEnvelope(t, w, http.StatusOK, cart.Empty())
	})
	client.newKey = func() string { return "fixed-key" }

	_, err := client.AddItem(context.Background(), competitionID, 3)
	require.NoError(t, err)
}

func TestErrorEnvelopeKeepsCodeAndDetails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPreconditionFailed)
		_, _ = io.WriteString(w, `{"error":{"code":"PRECONDITION_FAILED","message":"customer details incomplete","details":{"fields":{"email":"is required"}}}}`)
	})

	_, err := client.SubmitCheckout(context.Background(), pkgcheckout.CustomerDetails{}, "key")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.Code("PRECONDITION_FAILED"), typed.Code())
	assert.Equal(t, "customer details incomplete", typed.Message())
	assert.NotNil(t, typed.Details())
}

func TestErrorWithoutEnvelopeUsesStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	_, err := client.RemoveItem(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestServerFaultIsDependency(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusInternalServerError, string(pkgerrors.CodeInternal), "internal error")
	})

	_, err := client.ClearCart(context.Background())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestNetworkFailureIsDependency(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := NewClient(url)
	require.NoError(t, err)

	_, err = client.ValidateAnswer(context.Background(), uuid.New(), "x")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestValidateAnswerAndLogin(t *testing.T) {
	competitionID := uuid.New()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth/login":
			writeEnvelope(t, w, http.StatusOK, map[string]any{"accessToken": "fresh", "refreshToken": "r", "expiresIn": 900})
		case "/api/v1/competitions/" + competitionID.String() + "/validate-answer":
			assert.Equal(t, "Bearer fresh", r.Header.Get("Authorization"))
			writeEnvelope(t, w, http.StatusOK, map[string]bool{"correct": true})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	session, err := client.Login(context.Background(), "ada@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "fresh", session.AccessToken)

	correct, err := client.ValidateAnswer(context.Background(), competitionID, "Paris")
	require.NoError(t, err)
	assert.True(t, correct)
}
