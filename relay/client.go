// Package relay submits signed transaction bundles to a block-builder relay,
// bypassing the public mempool. The protocol is the Flashbots JSON-RPC
// surface: eth_sendBundle with an X-Flashbots-Signature auth header.
package relay

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const (
	contentTypeJSON  = "application/json"
	flashbotsXHeader = "X-Flashbots-Signature"
	methodSendBundle = "eth_sendBundle"

	// How long past the target block we keep checking for inclusion.
	inclusionPollInterval = 2 * time.Second
)

// Client is a private-relay RPC client.
type Client struct {
	httpClient *http.Client
	ethClient  *ethclient.Client
	relayURL   string
	authSigner *ecdsa.PrivateKey
	chainID    *big.Int
}

// NewClient creates a relay client. authKey signs the relay auth header, not
// the transactions themselves.
func NewClient(relayURL string, authKey *ecdsa.PrivateKey, ethClient *ethclient.Client, chainID *big.Int) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 3 * time.Second},
		ethClient:  ethClient,
		relayURL:   relayURL,
		authSigner: authKey,
		chainID:    chainID,
	}
}

// SignedBundle is a set of RLP-encoded signed transactions ready for
// submission.
type SignedBundle struct {
	RawTxs   []hexutil.Bytes
	TxHashes []common.Hash
}

// SubmitResult identifies a submitted bundle.
type SubmitResult struct {
	BundleID    string
	TargetBlock uint64
}

// InclusionResult is the terminal relay outcome for a bundle.
type InclusionResult struct {
	Included bool
	Reverted bool
	Receipt  *gethtypes.Receipt
}

// SignBundle signs each transaction with signer and RLP-encodes it.
func (c *Client) SignBundle(txs []*gethtypes.Transaction, signer *ecdsa.PrivateKey) (*SignedBundle, error) {
	bundle := &SignedBundle{
		RawTxs:   make([]hexutil.Bytes, 0, len(txs)),
		TxHashes: make([]common.Hash, 0, len(txs)),
	}

	txSigner := gethtypes.LatestSignerForChainID(c.chainID)
	for _, tx := range txs {
		signed, err := gethtypes.SignTx(tx, txSigner, signer)
		if err != nil {
			return nil, fmt.Errorf("failed to sign transaction: %w", err)
		}
		raw, err := signed.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("failed to encode transaction: %w", err)
		}
		bundle.RawTxs = append(bundle.RawTxs, raw)
		bundle.TxHashes = append(bundle.TxHashes, signed.Hash())
	}

	return bundle, nil
}

// SendRawBundle submits the bundle targeting exactly targetBlock. The bundle
// is not re-targeted at later blocks; missing the block is a benign no-op.
func (c *Client) SendRawBundle(ctx context.Context, bundle *SignedBundle, targetBlock uint64) (*SubmitResult, error) {
	txs := make([]string, len(bundle.RawTxs))
	for i, raw := range bundle.RawTxs {
		txs[i] = raw.String()
	}

	params := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  methodSendBundle,
		"params": []interface{}{
			map[string]interface{}{
				"txs":         txs,
				"blockNumber": fmt.Sprintf("0x%x", targetBlock),
			},
		},
	}

	body, err := c.post(ctx, params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			BundleHash string `json:"bundleHash"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode relay response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("relay rejected bundle: %s (code %d)", resp.Error.Message, resp.Error.Code)
	}

	return &SubmitResult{
		BundleID:    resp.Result.BundleHash,
		TargetBlock: targetBlock,
	}, nil
}

// AwaitInclusion blocks until the chain has passed the bundle's target block,
// then reports whether the bundle's first transaction landed and whether it
// reverted. This is the relay's own confirmation path; no public mempool
// polling happens.
func (c *Client) AwaitInclusion(ctx context.Context, bundle *SignedBundle, targetBlock uint64) (*InclusionResult, error) {
	if len(bundle.TxHashes) == 0 {
		return nil, fmt.Errorf("empty bundle")
	}
	txHash := bundle.TxHashes[0]

	ticker := time.NewTicker(inclusionPollInterval)
	defer ticker.Stop()

	for {
		head, err := c.ethClient.BlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get block number: %w", err)
		}
		if head >= targetBlock {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	receipt, err := c.ethClient.TransactionReceipt(ctx, txHash)
	if err != nil {
		// No receipt after the target block means the bundle missed it.
		return &InclusionResult{Included: false}, nil
	}

	return &InclusionResult{
		Included: true,
		Reverted: receipt.Status == gethtypes.ReceiptStatusFailed,
		Receipt:  receipt,
	}, nil
}

// post sends a signed JSON-RPC request to the relay.
func (c *Client) post(ctx context.Context, params map[string]interface{}) ([]byte, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.relayURL, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	signature, err := crypto.Sign(
		accounts.TextHash([]byte(hexutil.Encode(crypto.Keccak256(payload)))),
		c.authSigner,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}

	header := fmt.Sprintf("%s:%s",
		crypto.PubkeyToAddress(c.authSigner.PublicKey).Hex(),
		hexutil.Encode(signature),
	)

	req.Header.Add("Content-Type", contentTypeJSON)
	req.Header.Add("Accept", contentTypeJSON)
	req.Header.Add(flashbotsXHeader, header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("relay request failed: %s", string(body))
	}

	return body, nil
}
