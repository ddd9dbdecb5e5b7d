package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/rafflehouse-backend/pkg/logger"
	"github.com/angelmondragon/rafflehouse-backend/pkg/storefront"
)

type fakeAPI struct {
	cart          map[string]any
	correctAnswer string
	posts         atomic.Int32
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/cart":
		if f.cart == nil {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"cart not found"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": f.cart})
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/validate-answer"):
		var body struct {
			Answer string `json:"answer"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]bool{"correct": body.Answer == f.correctAnswer}})
	case r.Method == http.MethodPost:
		f.posts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestApp(t *testing.T, api *fakeAPI) (*app, *bytes.Buffer) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	client, err := storefront.NewClient(srv.URL, storefront.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	out := &bytes.Buffer{}
	a, err := newApp(client, logger.Nop(), out, false)
	require.NoError(t, err)
	return a, out
}

func TestRunWithoutArgsPrintsUsage(t *testing.T) {
	a, out := newTestApp(t, &fakeAPI{})
	assert.Equal(t, 2, a.Run(context.Background(), nil))
	assert.Contains(t, out.String(), "usage: raffle")
}

func TestCartWithoutServerCartIsEmpty(t *testing.T) {
	a, out := newTestApp(t, &fakeAPI{})
	require.Equal(t, 0, a.Run(context.Background(), []string{"cart"}))

	var got struct {
		Items  []any `json:"items"`
		Totals struct {
			TotalTickets int `json:"totalTickets"`
		} `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Empty(t, got.Items)
	assert.Zero(t, got.Totals.TotalTickets)
}

func TestEnterWithWrongAnswerDoesNotAddTickets(t *testing.T) {
	api := &fakeAPI{correctAnswer: "Paris"}
	a, out := newTestApp(t, api)

	code := a.Run(context.Background(), []string{"enter", "-answer", "Lyon", uuid.NewString(), "2"})
	require.Equal(t, 0, code)
	assert.Zero(t, api.posts.Load())
	assert.Contains(t, out.String(), `"added": false`)
}

func TestCheckoutWithEmptyCartMakesNoRequest(t *testing.T) {
	api := &fakeAPI{}
	a, out := newTestApp(t, api)

	code := a.Run(context.Background(), []string{"checkout", "-name", "Ada", "-email", "ada@example.com",
		"-address", "1 Way", "-city", "London", "-postcode", "N1", "-country", "GB"})
	assert.Equal(t, 1, code)
	assert.Zero(t, api.posts.Load())
	assert.Contains(t, out.String(), "PRECONDITION_FAILED")
	assert.Contains(t, out.String(), "/competitions")
}

func TestUnknownCommandFails(t *testing.T) {
	a, out := newTestApp(t, &fakeAPI{})
	assert.Equal(t, 1, a.Run(context.Background(), []string{"frobnicate"}))
	assert.Contains(t, out.String(), "unknown command")
}

func TestSetRequiresNumericQuantity(t *testing.T) {
	a, out := newTestApp(t, &fakeAPI{})
	assert.Equal(t, 1, a.Run(context.Background(), []string{"set", uuid.NewString(), "many"}))
	assert.Contains(t, out.String(), "VALIDATION_ERROR")
}
