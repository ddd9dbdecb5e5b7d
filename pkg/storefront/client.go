package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/rafflehouse-backend/internal/cart"
	"github.com/angelmondragon/rafflehouse-backend/internal/checkout"
	"github.com/angelmondragon/rafflehouse-backend/internal/competitions"
	pkgcheckout "github.com/angelmondragon/rafflehouse-backend/pkg/checkout"
	"github.com/angelmondragon/rafflehouse-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/rafflehouse-backend/pkg/errors"
	"github.com/angelmondragon/rafflehouse-backend/pkg/types"
)

const (
	apiPrefix                  = "/api/v1"
	errorBodyReadLimit   int64 = 4096
	idempotencyKeyHeader       = "Idempotency-Key"
)

var errBaseURLRequired = errors.New("storefront base url is required")

// Client talks to the rafflehouse HTTP API on behalf of one signed-in
// customer. It satisfies the cart sync, entry and checkout transports.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	newKey     func() string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// NewClient builds a client for the API at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		newKey:     uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// NewFromConfig builds a client from the storefront config block.
func NewFromConfig(cfg config.StorefrontConfig) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return NewClient(cfg.BaseURL, WithToken(cfg.Token), WithHTTPClient(&http.Client{Timeout: timeout}))
}

// SetToken replaces the bearer token, for example after a login.
func (c *Client) SetToken(token string) {
	c.token = strings.TrimSpace(token)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is the token pair returned by a login.
type Session struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Login exchanges credentials for a token pair and keeps the access token.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var out Session
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", loginRequest{Email: email, Password: password}, &out); err != nil {
		return Session{}, err
	}
	c.SetToken(out.AccessToken)
	return out, nil
}

// ListCompetitions returns one page of live competitions.
func (c *Client) ListCompetitions(ctx context.Context, cursor string) (types.Page[competitions.PublicCompetition], error) {
	path := "/competitions"
	if cursor != "" {
		path += "?" + url.Values{"cursor": {cursor}}.Encode()
	}
	var out types.Page[competitions.PublicCompetition]
	err := c.do(ctx, http.MethodGet, path, "", nil, &out)
	return out, err
}

// FetchCart returns nil when the customer has no cart yet.
func (c *Client) FetchCart(ctx context.Context) (*cart.Cart, error) {
	var out cart.Cart
	if err := c.do(ctx, http.MethodGet, "/cart", "", nil, &out); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

type addItemRequest struct {
	CompetitionID uuid.UUID `json:"competitionId"`
	Quantity      int       `json:"quantity"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (c *Client) AddItem(ctx context.Context, competitionID uuid.UUID, quantity int) (cart.Cart, error) {
	var out cart.Cart
	err := c.do(ctx, http.MethodPost, "/cart/items", c.newKey(), addItemRequest{CompetitionID: competitionID, Quantity: quantity}, &out)
	return out, err
}

func (c *Client) UpdateItem(ctx context.Context, itemID uuid.UUID, quantity int) (cart.Cart, error) {
	var out cart.Cart
	err := c.do(ctx, http.MethodPatch, "/cart/items/"+itemID.String(), "", quantityRequest{Quantity: quantity}, &out)
	return out, err
}

func (c *Client) RemoveItem(ctx context.Context, itemID uuid.UUID) (cart.Cart, error) {
	var out cart.Cart
	err := c.do(ctx, http.MethodDelete, "/cart/items/"+itemID.String(), "", nil, &out)
	return out, err
}

func (c *Client) ClearCart(ctx context.Context) (cart.Cart, error) {
	var out cart.Cart
	err := c.do(ctx, http.MethodDelete, "/cart", "", nil, &out)
	return out, err
}

type answerRequest struct {
	Answer string `json:"answer"`
}

type answerResponse struct {
	Correct bool `json:"correct"`
}

// ValidateAnswer asks the server to check a qualifying answer.
func (c *Client) ValidateAnswer(ctx context.Context, competitionID uuid.UUID, answer string) (bool, error) {
	var out answerResponse
	if err := c.do(ctx, http.MethodPost, "/competitions/"+competitionID.String()+"/validate-answer", "", answerRequest{Answer: answer}, &out); err != nil {
		return false, err
	}
	return out.Correct, nil
}

// SubmitCheckout posts the customer details under the given idempotency key.
func (c *Client) SubmitCheckout(ctx context.Context, details pkgcheckout.CustomerDetails, idempotencyKey string) (checkout.Receipt, error) {
	var out checkout.Receipt
	err := c.do(ctx, http.MethodPost, "/checkout", idempotencyKey, details, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, body any, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "storefront client not configured")
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if idempotencyKey != "" {
		req.Header.Set(idempotencyKeyHeader, idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s %s", method, path))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	envelope := struct {
		Data any `json:"data"`
	}{Data: out}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response")
	}
	return nil
}

// decodeError maps the API error envelope back onto a typed error. Server
// faults surface as dependency errors regardless of the code they carry.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))

	var envelope types.ErrorEnvelope
	_ = json.Unmarshal(raw, &envelope)

	message := strings.TrimSpace(envelope.Error.Message)
	if message == "" {
		message = fmt.Sprintf("storefront returned status %d", resp.StatusCode)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))), message)
	}

	code := pkgerrors.Code(envelope.Error.Code)
	if code == "" {
		code = pkgerrors.CodeForStatus(resp.StatusCode)
	}
	typed := pkgerrors.New(code, message)
	if envelope.Error.Details != nil {
		typed = typed.WithDetails(envelope.Error.Details)
	}
	return typed
}
