package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/arbkeeper/config"
)

func chainIDServer(t *testing.T, chainID string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "eth_chainId", req.Method)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  chainID,
		})
	}))
}

func TestDialVerifiesChainID(t *testing.T) {
	server := chainIDServer(t, "0x1")
	defer server.Close()

	cfg := config.DefaultConfig()
	cfg.RPCEndpoint = server.URL
	cfg.ChainID = 1

	client, chainID, err := dial(context.Background(), cfg)
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, int64(1), chainID.Int64())
}

func TestDialRejectsWrongChain(t *testing.T) {
	server := chainIDServer(t, "0xa")
	defer server.Close()

	cfg := config.DefaultConfig()
	cfg.RPCEndpoint = server.URL
	cfg.ChainID = 1

	_, _, err := dial(context.Background(), cfg)
	assert.ErrorContains(t, err, "chain id mismatch")
}

func TestKeygen(t *testing.T) {
	var out bytes.Buffer
	keygenCmd.SetOut(&out)
	require.NoError(t, keygenCmd.RunE(keygenCmd, nil))

	lines := strings.Split(out.String(), "\n")
	require.GreaterOrEqual(t, len(lines), 2)

	keyHex := strings.TrimPrefix(strings.TrimPrefix(lines[0], "Private Key: "), "0x")
	key, err := crypto.HexToECDSA(keyHex)
	require.NoError(t, err)

	addr := strings.TrimPrefix(lines[1], "Public Address: ")
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), addr)
}

func TestStartReturnsStartupErrors(t *testing.T) {
	prev := cfgFile
	cfgFile = filepath.Join(t.TempDir(), "missing.yaml")
	defer func() { cfgFile = prev }()

	err := runKeeper(context.Background(), zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "failed to load config")

	startCmd.SetContext(context.Background())
	assert.Error(t, startCmd.RunE(startCmd, nil))
}
