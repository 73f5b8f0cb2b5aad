package flashbots

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	contentTypeJSON          = "application/json"
	flashbotsXHeader         = "X-Flashbots-Signature"
	methodSendPrivateTx      = "eth_sendPrivateTransaction"
	methodCancelPrivateTx    = "eth_cancelPrivateTransaction"
	defaultRelayRequestLimit = 5 * time.Second
)

// Client submits transactions to a private relay, bypassing the public mempool
type Client struct {
	httpClient *http.Client
	relayURL   string
	authSigner *ecdsa.PrivateKey
}

// NewClient creates a new relay client. authKey only authenticates requests and holds no funds.
func NewClient(relayURL string, authKey *ecdsa.PrivateKey) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: defaultRelayRequestLimit,
		},
		relayURL:   relayURL,
		authSigner: authKey,
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RelayError     `json:"error"`
}

// RelayError is a JSON-RPC error returned by the relay
type RelayError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("relay error %d: %s", e.Code, e.Message)
}

type privateTxParams struct {
	Tx          string        `json:"tx"`
	Preferences txPreferences `json:"preferences"`
}

type txPreferences struct {
	Fast bool `json:"fast"`
}

// SendTransaction submits a signed transaction as a private transaction
func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode transaction: %w", err)
	}

	var hash common.Hash
	err = c.call(ctx, methodSendPrivateTx, []interface{}{
		privateTxParams{
			Tx:          hexutil.Encode(raw),
			Preferences: txPreferences{Fast: true},
		},
	}, &hash)
	if err != nil {
		return err
	}
	if hash != tx.Hash() {
		return fmt.Errorf("relay returned hash %s for transaction %s", hash.Hex(), tx.Hash().Hex())
	}

	return nil
}

// CancelTransaction asks the relay to stop including a pending private transaction
func (c *Client) CancelTransaction(ctx context.Context, txHash common.Hash) (bool, error) {
	var cancelled bool
	err := c.call(ctx, methodCancelPrivateTx, []interface{}{
		map[string]string{"txHash": txHash.Hex()},
	}, &cancelled)
	return cancelled, err
}

func (c *Client) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	header, err := c.signPayload(payload)
	if err != nil {
		return err
	}

	req.Header.Add("Content-Type", contentTypeJSON)
	req.Header.Add("Accept", contentTypeJSON)
	req.Header.Add(flashbotsXHeader, header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var decoded rpcResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if decoded.Error != nil {
		return decoded.Error
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(decoded.Result, result); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}

	return nil
}

// signPayload builds the "address:signature" authentication header value
func (c *Client) signPayload(payload []byte) (string, error) {
	signature, err := crypto.Sign(
		accounts.TextHash([]byte(hexutil.Encode(crypto.Keccak256(payload)))),
		c.authSigner,
	)
	if err != nil {
		return "", fmt.Errorf("failed to sign request: %w", err)
	}

	return fmt.Sprintf("%s:%s",
		crypto.PubkeyToAddress(c.authSigner.PublicKey).Hex(),
		hexutil.Encode(signature),
	), nil
}
