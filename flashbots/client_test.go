package flashbots

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelpento.lv/arbkeeper/utils/testutils"
)

// relayServer verifies the signature header and answers with respond
func relayServer(t *testing.T, authAddr common.Address, respond func(req rpcRequest) string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		parts := strings.SplitN(r.Header.Get(flashbotsXHeader), ":", 2)
		require.Len(t, parts, 2)
		assert.Equal(t, authAddr.Hex(), parts[0])

		sig, err := hexutil.Decode(parts[1])
		require.NoError(t, err)
		pub, err := crypto.SigToPub(accounts.TextHash([]byte(hexutil.Encode(crypto.Keccak256(body)))), sig)
		require.NoError(t, err)
		assert.Equal(t, authAddr, crypto.PubkeyToAddress(*pub))

		var req rpcRequest
		require.NoError(t, json.Unmarshal(body, &req))

		w.Header().Set("Content-Type", contentTypeJSON)
		_, _ = io.WriteString(w, respond(req))
	}))
}

func TestSendTransaction(t *testing.T) {
	authKey, authAddr := testutils.NewTestKey(t)
	tx := testutils.CreateMockTransaction(t, big.NewInt(1), common.HexToAddress("0x1111111111111111111111111111111111111111"), []byte{0x01})

	server := relayServer(t, authAddr, func(req rpcRequest) string {
		assert.Equal(t, methodSendPrivateTx, req.Method)
		require.Len(t, req.Params, 1)

		params := req.Params[0].(map[string]interface{})
		raw, err := hexutil.Decode(params["tx"].(string))
		require.NoError(t, err)

		var decoded types.Transaction
		require.NoError(t, decoded.UnmarshalBinary(raw))
		return `{"jsonrpc":"2.0","id":1,"result":"` + decoded.Hash().Hex() + `"}`
	})
	defer server.Close()

	client := NewClient(server.URL, authKey)
	require.NoError(t, client.SendTransaction(context.Background(), tx))
}

func TestSendTransactionRelayError(t *testing.T) {
	authKey, authAddr := testutils.NewTestKey(t)
	tx := testutils.CreateMockTransaction(t, big.NewInt(1), common.HexToAddress("0x1111111111111111111111111111111111111111"), nil)

	server := relayServer(t, authAddr, func(rpcRequest) string {
		return `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"nonce too low"}}`
	})
	defer server.Close()

	err := NewClient(server.URL, authKey).SendTransaction(context.Background(), tx)
	var relayErr *RelayError
	require.ErrorAs(t, err, &relayErr)
	assert.Equal(t, -32000, relayErr.Code)
	assert.Contains(t, err.Error(), "nonce too low")
}

func TestSendTransactionHTTPFailure(t *testing.T) {
	authKey, _ := testutils.NewTestKey(t)
	tx := testutils.CreateMockTransaction(t, big.NewInt(1), common.HexToAddress("0x1111111111111111111111111111111111111111"), nil)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	err := NewClient(server.URL, authKey).SendTransaction(context.Background(), tx)
	assert.ErrorContains(t, err, "429")
}

func TestCancelTransaction(t *testing.T) {
	authKey, authAddr := testutils.NewTestKey(t)

	server := relayServer(t, authAddr, func(req rpcRequest) string {
		assert.Equal(t, methodCancelPrivateTx, req.Method)
		return `{"jsonrpc":"2.0","id":1,"result":true}`
	})
	defer server.Close()

	ok, err := NewClient(server.URL, authKey).CancelTransaction(context.Background(), common.HexToHash("0xabc"))
	require.NoError(t, err)
	assert.True(t, ok)
}
