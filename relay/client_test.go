package relay

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBundle(t *testing.T, c *Client) *SignedBundle {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	to := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    0,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      21000,
		GasPrice: big.NewInt(1),
	})

	bundle, err := c.SignBundle([]*gethtypes.Transaction{tx}, key)
	require.NoError(t, err)
	return bundle
}

func TestSignBundle(t *testing.T) {
	authKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	c := NewClient("http://unused", authKey, nil, big.NewInt(1))

	bundle := newTestBundle(t, c)
	require.Len(t, bundle.RawTxs, 1)
	require.Len(t, bundle.TxHashes, 1)
	assert.NotEmpty(t, bundle.RawTxs[0])
	assert.NotEqual(t, common.Hash{}, bundle.TxHashes[0])

	// The raw payload decodes back to a signed transaction with the same hash.
	var decoded gethtypes.Transaction
	require.NoError(t, decoded.UnmarshalBinary(bundle.RawTxs[0]))
	assert.Equal(t, bundle.TxHashes[0], decoded.Hash())
}

func TestSendRawBundle(t *testing.T) {
	var (
		gotHeader string
		gotMethod string
		gotBlock  string
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Flashbots-Signature")

		body, _ := io.ReadAll(r.Body)
		var req struct {
			Method string `json:"method"`
			Params []struct {
				BlockNumber string `json:"blockNumber"`
			} `json:"params"`
		}
		assert.NoError(t, json.Unmarshal(body, &req))
		gotMethod = req.Method
		if len(req.Params) > 0 {
			gotBlock = req.Params[0].BlockNumber
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"bundleHash":"0xabc123"}}`))
	}))
	defer srv.Close()

	authKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	c := NewClient(srv.URL, authKey, nil, big.NewInt(1))
	bundle := newTestBundle(t, c)

	res, err := c.SendRawBundle(context.Background(), bundle, 0x1234)
	require.NoError(t, err)
	assert.Equal(t, "0xabc123", res.BundleID)
	assert.Equal(t, uint64(0x1234), res.TargetBlock)

	assert.Equal(t, "eth_sendBundle", gotMethod)
	assert.Equal(t, "0x1234", gotBlock)

	// Auth header is address:signature.
	parts := strings.Split(gotHeader, ":")
	require.Len(t, parts, 2)
	assert.Equal(t, crypto.PubkeyToAddress(authKey.PublicKey).Hex(), parts[0])
	assert.True(t, strings.HasPrefix(parts[1], "0x"))
}

func TestSendRawBundleRelayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32600,"message":"bundle contains no txs"}}`))
	}))
	defer srv.Close()

	authKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	c := NewClient(srv.URL, authKey, nil, big.NewInt(1))
	bundle := newTestBundle(t, c)

	_, err = c.SendRawBundle(context.Background(), bundle, 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bundle contains no txs")
}

func TestSendRawBundleHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	authKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	c := NewClient(srv.URL, authKey, nil, big.NewInt(1))
	bundle := newTestBundle(t, c)

	_, err = c.SendRawBundle(context.Background(), bundle, 100)
	assert.Error(t, err)
}

func TestAwaitInclusionEmptyBundle(t *testing.T) {
	authKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	c := NewClient("http://unused", authKey, nil, big.NewInt(1))

	_, err = c.AwaitInclusion(context.Background(), &SignedBundle{}, 100)
	assert.Error(t, err)
}
