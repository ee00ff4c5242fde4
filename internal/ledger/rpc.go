package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/pda"
	"github.com/mr-tron/base58"
	"github.com/sethvargo/go-retry"
)

// Commitment levels understood by the ledger RPC, weakest first.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

var commitmentRank = map[string]int{
	CommitmentProcessed: 0,
	CommitmentConfirmed: 1,
	CommitmentFinalized: 2,
}

const (
	defaultConfirmInterval = 500 * time.Millisecond
	defaultConfirmTimeout  = 60 * time.Second
)

// RPCClient talks JSON-RPC 2.0 to a ledger node over HTTP.
type RPCClient struct {
	endpoint   string
	commitment string
	httpClient *http.Client
	nextID     atomic.Uint64

	// ConfirmInterval and ConfirmTimeout bound the signature status polling
	// done after a transaction is sent.
	ConfirmInterval time.Duration
	ConfirmTimeout  time.Duration
}

// NewRPCClient returns a client for endpoint. An empty commitment defaults to
// "confirmed"; a nil httpClient to http.DefaultClient.
func NewRPCClient(endpoint, commitment string, httpClient *http.Client) (*RPCClient, error) {
	if commitment == "" {
		commitment = CommitmentConfirmed
	}
	if _, ok := commitmentRank[commitment]; !ok {
		return nil, fmt.Errorf("unknown commitment %q", commitment)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RPCClient{
		endpoint:        endpoint,
		commitment:      commitment,
		httpClient:      httpClient,
		ConfirmInterval: defaultConfirmInterval,
		ConfirmTimeout:  defaultConfirmTimeout,
	}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// transient reports node-side conditions worth retrying: node behind or
// unhealthy (-32005), block not available (-32004) and rate limiting.
func (e *RPCError) transient() bool {
	switch e.Code {
	case -32004, -32005, 429:
		return true
	}
	return false
}

func (c *RPCClient) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %v: %w", method, err, common.ErrLedgerUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return fmt.Errorf("%s: http %d: %w", method, resp.StatusCode, common.ErrLedgerUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected http status %d: %w", method, resp.StatusCode, common.ErrLedgerUnavailable)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read body: %v: %w", method, err, common.ErrLedgerUnavailable)
	}

	var r rpcResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return fmt.Errorf("%s: decode response: %v: %w", method, err, common.ErrLedgerUnavailable)
	}
	if r.Error != nil {
		if r.Error.transient() {
			return fmt.Errorf("%s: %w: %w", method, r.Error, common.ErrLedgerUnavailable)
		}
		return fmt.Errorf("%s: %w", method, r.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(r.Result, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

type accountInfoResult struct {
	Value *struct {
		Data     []string `json:"data"`
		Lamports uint64   `json:"lamports"`
		Owner    string   `json:"owner"`
	} `json:"value"`
}

// GetAccountInfo fetches the account at address at the client's commitment.
func (c *RPCClient) GetAccountInfo(ctx context.Context, address pda.PublicKey) (*AccountInfo, error) {
	var res accountInfoResult
	params := []any{address.String(), map[string]any{"encoding": "base64", "commitment": c.commitment}}
	if err := c.call(ctx, "getAccountInfo", params, &res); err != nil {
		return nil, err
	}
	if res.Value == nil {
		return nil, fmt.Errorf("%s: %w", address, ErrAccountNotFound)
	}
	if len(res.Value.Data) < 1 {
		return nil, fmt.Errorf("%s: missing data: %w", address, ErrInvalidAccountData)
	}

	data, err := base64.StdEncoding.DecodeString(res.Value.Data[0])
	if err != nil {
		return nil, fmt.Errorf("%s: data: %v: %w", address, err, ErrInvalidAccountData)
	}
	owner, err := pda.ParsePublicKey(res.Value.Owner)
	if err != nil {
		return nil, fmt.Errorf("%s: owner: %w", address, err)
	}

	return &AccountInfo{Owner: owner, Lamports: res.Value.Lamports, Data: data}, nil
}

type balanceResult struct {
	Value uint64 `json:"value"`
}

func (c *RPCClient) GetBalance(ctx context.Context, address pda.PublicKey) (uint64, error) {
	var res balanceResult
	params := []any{address.String(), map[string]any{"commitment": c.commitment}}
	if err := c.call(ctx, "getBalance", params, &res); err != nil {
		return 0, err
	}
	return res.Value, nil
}

type blockhashResult struct {
	Value struct {
		Blockhash string `json:"blockhash"`
	} `json:"value"`
}

func (c *RPCClient) latestBlockhash(ctx context.Context) ([32]byte, error) {
	var hash [32]byte
	var res blockhashResult
	if err := c.call(ctx, "getLatestBlockhash", []any{map[string]any{"commitment": c.commitment}}, &res); err != nil {
		return hash, err
	}
	b, err := base58.Decode(res.Value.Blockhash)
	if err != nil || len(b) != len(hash) {
		return hash, fmt.Errorf("getLatestBlockhash: malformed blockhash %q", res.Value.Blockhash)
	}
	copy(hash[:], b)
	return hash, nil
}

// SubmitTransaction signs the instructions with a fresh blockhash, sends the
// transaction and waits until it reaches the client's commitment. The first
// signer pays the fee. The returned value is the base58 transaction
// signature.
func (c *RPCClient) SubmitTransaction(ctx context.Context, instructions []Instruction, signers []Signer) (string, error) {
	blockhash, err := c.latestBlockhash(ctx)
	if err != nil {
		return "", err
	}

	tx, err := SignTransaction(instructions, signers, blockhash)
	if err != nil {
		return "", err
	}

	var signature string
	params := []any{
		base64.StdEncoding.EncodeToString(tx),
		map[string]any{"encoding": "base64", "preflightCommitment": c.commitment},
	}
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			return "", fmt.Errorf("%w: %w", ErrTransactionFailed, err)
		}
		return "", err
	}

	if err := c.confirm(ctx, signature); err != nil {
		return signature, err
	}
	return signature, nil
}

type signatureStatusesResult struct {
	Value []*struct {
		ConfirmationStatus string          `json:"confirmationStatus"`
		Err                json.RawMessage `json:"err"`
	} `json:"value"`
}

var errNotConfirmed = errors.New("transaction not yet confirmed")

func (c *RPCClient) confirm(ctx context.Context, signature string) error {
	want := commitmentRank[c.commitment]
	b := retry.WithMaxDuration(c.ConfirmTimeout, retry.NewConstant(c.ConfirmInterval))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		var res signatureStatusesResult
		params := []any{[]string{signature}, map[string]any{"searchTransactionHistory": true}}
		if err := c.call(ctx, "getSignatureStatuses", params, &res); err != nil {
			if errors.Is(err, common.ErrLedgerUnavailable) {
				return retry.RetryableError(err)
			}
			return err
		}
		if len(res.Value) == 0 || res.Value[0] == nil {
			return retry.RetryableError(errNotConfirmed)
		}
		st := res.Value[0]
		if len(st.Err) > 0 && string(st.Err) != "null" {
			return fmt.Errorf("%w: %s", ErrTransactionFailed, st.Err)
		}
		if rank, ok := commitmentRank[st.ConfirmationStatus]; !ok || rank < want {
			return retry.RetryableError(errNotConfirmed)
		}
		return nil
	})
	if errors.Is(err, errNotConfirmed) {
		return fmt.Errorf("signature %s: %w: %w", signature, err, common.ErrLedgerUnavailable)
	}
	return err
}
