package safe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-resty/resty/v2"
)

// ErrNotFound is returned when the service has no record of a Safe or tx.
var ErrNotFound = errors.New("safe service: not found")

// ServiceClient talks to a Safe Transaction Service instance.
type ServiceClient struct {
	baseURL string
	client  *resty.Client
}

// NewServiceClient returns a client for baseURL, e.g.
// https://safe-transaction-mainnet.safe.global.
func NewServiceClient(baseURL string, timeout time.Duration) *ServiceClient {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &ServiceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: resty.New().
			SetTimeout(timeout).
			SetHeaders(map[string]string{
				"Accept":       "application/json",
				"Content-Type": "application/json",
			}),
	}
}

// SafeInfo is the on-chain state of a Safe as indexed by the service.
type SafeInfo struct {
	Address   string      `json:"address"`
	Nonce     json.Number `json:"nonce"`
	Threshold int         `json:"threshold"`
	Owners    []string    `json:"owners"`
	Version   string      `json:"version"`
}

// Confirmation is one owner signature on a Safe tx.
type Confirmation struct {
	Owner     string `json:"owner"`
	Signature string `json:"signature"`
}

// MultisigTx is a Safe tx as reported by the service.
type MultisigTx struct {
	Safe                  string         `json:"safe"`
	SafeTxHash            string         `json:"safeTxHash"`
	To                    string         `json:"to"`
	Value                 string         `json:"value"`
	Data                  *string        `json:"data"`
	Nonce                 json.Number    `json:"nonce"`
	IsExecuted            bool           `json:"isExecuted"`
	IsSuccessful          *bool          `json:"isSuccessful"`
	TransactionHash       *string        `json:"transactionHash"`
	ExecutionDate         *time.Time     `json:"executionDate"`
	ConfirmationsRequired int            `json:"confirmationsRequired"`
	Confirmations         []Confirmation `json:"confirmations"`
}

// ProposeRequest is the body of a multisig-transactions POST.
type ProposeRequest struct {
	Safe                    string `json:"safe"`
	To                      string `json:"to"`
	Value                   string `json:"value"`
	Data                    string `json:"data,omitempty"`
	Operation               uint8  `json:"operation"`
	SafeTxGas               string `json:"safeTxGas"`
	BaseGas                 string `json:"baseGas"`
	GasPrice                string `json:"gasPrice"`
	GasToken                string `json:"gasToken"`
	RefundReceiver          string `json:"refundReceiver"`
	Nonce                   uint64 `json:"nonce"`
	ContractTransactionHash string `json:"contractTransactionHash"`
	Sender                  string `json:"sender"`
	Signature               string `json:"signature"`
	Origin                  string `json:"origin,omitempty"`
}

// NewProposeRequest fills a ProposeRequest from a hashed Transaction.
func NewProposeRequest(safe common.Address, tx Transaction, hash common.Hash, sender common.Address, sig []byte, origin string) ProposeRequest {
	data := ""
	if len(tx.Data) > 0 {
		data = hexutil.Encode(tx.Data)
	}
	return ProposeRequest{
		Safe:                    safe.Hex(),
		To:                      tx.To.Hex(),
		Value:                   decimalString(tx.Value),
		Data:                    data,
		Operation:               uint8(tx.Operation),
		SafeTxGas:               decimalString(tx.SafeTxGas),
		BaseGas:                 decimalString(tx.BaseGas),
		GasPrice:                decimalString(tx.GasPrice),
		GasToken:                tx.GasToken.Hex(),
		RefundReceiver:          tx.RefundReceiver.Hex(),
		Nonce:                   tx.Nonce,
		ContractTransactionHash: hash.Hex(),
		Sender:                  sender.Hex(),
		Signature:               hexutil.Encode(sig),
		Origin:                  origin,
	}
}

func decimalString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// GetSafe returns nonce, threshold and owners of a Safe.
func (c *ServiceClient) GetSafe(ctx context.Context, safe common.Address) (*SafeInfo, error) {
	var out SafeInfo
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get(c.baseURL + "/api/v1/safes/" + safe.Hex() + "/")
	if err := checkResponse("get safe", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// Nonce returns the next nonce of a Safe as a uint64.
func (c *ServiceClient) Nonce(ctx context.Context, safe common.Address) (uint64, error) {
	info, err := c.GetSafe(ctx, safe)
	if err != nil {
		return 0, err
	}
	n, err := info.Nonce.Int64()
	if err != nil || n < 0 {
		return 0, fmt.Errorf("safe service: bad nonce %q", info.Nonce)
	}
	return uint64(n), nil
}

// Propose registers a signed Safe tx with the service.
func (c *ServiceClient) Propose(ctx context.Context, req ProposeRequest) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		Post(c.baseURL + "/api/v1/safes/" + req.Safe + "/multisig-transactions/")
	return checkResponse("propose", resp, err)
}

// Confirm adds an owner signature to a proposed Safe tx.
func (c *ServiceClient) Confirm(ctx context.Context, safeTxHash string, sig []byte) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"signature": hexutil.Encode(sig)}).
		Post(c.baseURL + "/api/v1/multisig-transactions/" + safeTxHash + "/confirmations/")
	return checkResponse("confirm", resp, err)
}

// GetTransaction returns a Safe tx with its confirmations.
func (c *ServiceClient) GetTransaction(ctx context.Context, safeTxHash string) (*MultisigTx, error) {
	var out MultisigTx
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get(c.baseURL + "/api/v1/multisig-transactions/" + safeTxHash + "/")
	if err := checkResponse("get transaction", resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func checkResponse(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("safe service %s: %w", op, err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return fmt.Errorf("%w (%s)", ErrNotFound, op)
	case resp.StatusCode() == http.StatusTooManyRequests:
		return fmt.Errorf("safe service %s: rate_limit (429)", op)
	case resp.IsError():
		return fmt.Errorf("safe service %s: status %d: %s", op, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}
