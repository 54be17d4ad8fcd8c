// Package ledgerclient implements the typed HTTP client for the remote
// ledger API. The remote ledger owns all balances, the capping policy and
// the transaction history; this client never caches anything.
package ledgerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/streampanel/creditgate/internal/domain"
	"github.com/streampanel/creditgate/pkg/configpkg"
)

// IdempotencyKeyHeader carries the client generated request id so the
// ledger can deduplicate double submits.
const IdempotencyKeyHeader = "Idempotency-Key"

type tokenKey struct{}

// WithToken returns a context carrying the caller's access token. The
// client forwards it to the ledger so /accounts/me resolves to the actor.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// Client calls the remote ledger API.
type Client struct {
	baseURL      string
	http         *http.Client
	serviceToken string
}

// New returns a ledger client configured from the app config.
func New(config configpkg.Config) *Client {
	return &Client{
		baseURL:      strings.TrimRight(config.LedgerBaseURL, "/"),
		http:         &http.Client{Timeout: config.LedgerTimeout},
		serviceToken: config.LedgerServiceToken,
	}
}

// Me returns the authenticated actor's account snapshot.
func (c *Client) Me(ctx context.Context) (domain.Account, error) {
	var account domain.Account
	err := c.do(ctx, http.MethodGet, "/accounts/me", nil, nil, &account, "")

	return account, err
}

// Account returns the account snapshot for the given id.
func (c *Client) Account(ctx context.Context, id string) (domain.Account, error) {
	var account domain.Account
	err := c.do(ctx, http.MethodGet, "/accounts/"+url.PathEscape(id), nil, nil, &account, "")

	return account, err
}

// List returns candidate target accounts, optionally filtered by role.
func (c *Client) List(ctx context.Context, role string) ([]domain.Account, error) {
	query := url.Values{}
	if role != "" {
		query.Set("role", role)
	}

	var accounts []domain.Account
	err := c.do(ctx, http.MethodGet, "/accounts", query, nil, &accounts, "")

	return accounts, err
}

// Policy returns the current capping policy.
func (c *Client) Policy(ctx context.Context) (domain.CappingPolicy, error) {
	var policy domain.CappingPolicy
	err := c.do(ctx, http.MethodGet, "/capping-policy", nil, nil, &policy, "")

	return policy, err
}

// UpdatePolicy replaces the capping policy. Admin only; the ledger answers
// 403 otherwise.
func (c *Client) UpdatePolicy(ctx context.Context, policy domain.CappingPolicy) (domain.CappingPolicy, error) {
	var updated domain.CappingPolicy
	err := c.do(ctx, http.MethodPut, "/capping-policy", nil, policy, &updated, "")

	return updated, err
}

// Submit posts a transaction intent. The ledger is the final arbiter and
// may reject regardless of the local pre-check.
func (c *Client) Submit(ctx context.Context, arg domain.SubmitTransactionParams, idempotencyKey string) (domain.TransactionRecord, error) {
	var record domain.TransactionRecord

	path := "/transactions"
	if arg.Type == domain.TypeSelfCredit {
		path = "/transactions/self-credit"
		arg.TargetAccountID = ""
	}

	err := c.do(ctx, http.MethodPost, path, nil, arg, &record, idempotencyKey)

	return record, err
}

// ListTransactions returns settled ledger records, newest first.
func (c *Client) ListTransactions(ctx context.Context, limit, offset int32) ([]domain.TransactionRecord, error) {
	query := url.Values{}
	query.Set("limit", strconv.FormatInt(int64(limit), 10))
	query.Set("offset", strconv.FormatInt(int64(offset), 10))

	var records []domain.TransactionRecord
	err := c.do(ctx, http.MethodGet, "/transactions", query, nil, &records, "")

	return records, err
}

type errorBody struct {
	Error string `json:"error"`
}

func (c *Client) bearer(ctx context.Context) string {
	if token, ok := ctx.Value(tokenKey{}).(string); ok && token != "" {
		return token
	}

	return c.serviceToken
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, idempotencyKey string) error {
	l := zerolog.Ctx(ctx)

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}

		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "bearer "+c.bearer(ctx))

	if idempotencyKey != "" {
		req.Header.Set(IdempotencyKeyHeader, idempotencyKey)
	}

	res, err := c.http.Do(req)
	if err != nil {
		l.Warn().Err(err).Str("path", path).Send()
		return fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		var remote errorBody
		_ = json.NewDecoder(res.Body).Decode(&remote)

		return remoteError(res.StatusCode, remote.Error)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(res.Body).Decode(out)
}

// remoteError maps ledger statuses onto the domain error taxonomy. The
// server's message is carried verbatim so the UI can surface it.
func remoteError(status int, msg string) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrUnauthorized
	case http.StatusNotFound:
		return domain.ErrAccountNotFound
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", domain.ErrStaleBalance, msg)
	case http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", domain.ErrRemoteRejected, msg)
	}

	return fmt.Errorf("ledger responded %d: %s", status, msg)
}
