package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/nftgp/http-gateway/internal/errs"
	"github.com/nftgp/http-gateway/internal/metrics"
	"github.com/nftgp/http-gateway/internal/nfturi"
)

const (
	erc721TokenURIMethodSignature = "0xc87b56dd" // tokenURI(uint256)

	rpcContentType  = "application/json;charset=UTF-8"
	maxRPCRespBytes = 10 << 20
)

var erc721MetadataABI = `[{"inputs":[{"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"tokenURI","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"}]`

var tokenURIABI = mustParseABI(erc721MetadataABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parse abi: %v", err))
	}
	return parsed
}

// CallObject is the transaction object of an eth_call.
type CallObject struct {
	From string `json:"from,omitempty"`
	To   string `json:"to"`
	Data string `json:"data,omitempty"`
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Caller performs read-only contract calls against the RPC endpoint configured
// for each chain. It neither caches nor retries.
type Caller struct {
	client    HttpClient
	endpoints map[uint64]string
	metrics   *metrics.Metrics
}

func NewCaller(client HttpClient, endpoints map[uint64]string, m *metrics.Metrics) *Caller {
	return &Caller{
		client:    client,
		endpoints: endpoints,
		metrics:   m,
	}
}

// TokenURI returns the metadata URI the token's contract declares. An empty
// string is a valid result.
func (c *Caller) TokenURI(ctx context.Context, n *nfturi.NftURI) (string, error) {
	if !common.IsHexAddress(n.ContractAddress) {
		return "", fmt.Errorf("%w: invalid contract address %q", errs.ErrParse, n.ContractAddress)
	}
	if n.From != "" && !common.IsHexAddress(n.From) {
		return "", fmt.Errorf("%w: invalid from address %q", errs.ErrParse, n.From)
	}

	data, err := TokenURICallData(n.TokenID)
	if err != nil {
		return "", err
	}

	result, err := c.Call(ctx, n.ChainID, CallObject{
		From: n.From,
		To:   n.ContractAddress,
		Data: data,
	}, n.Block.Param())
	if err != nil {
		return "", err
	}

	return DecodeString(result)
}

// TokenURICallData builds the tokenURI(uint256) selector followed by the token
// id as a left-padded 32 byte big-endian word.
func TokenURICallData(tokenID string) (string, error) {
	id, ok := nfturi.ParseTokenID(tokenID)
	if !ok || id.BitLen() > 256 {
		return "", fmt.Errorf("%w: token id %q is not a uint256", errs.ErrParse, tokenID)
	}
	packed, err := tokenURIABI.Pack("tokenURI", id)
	if err != nil {
		return "", fmt.Errorf("%w: pack tokenURI: %v", errs.ErrParse, err)
	}
	return hexutil.Encode(packed), nil
}

// DecodeString ABI-decodes a single string return value.
func DecodeString(result string) (string, error) {
	raw, err := hexutil.Decode(result)
	if err != nil {
		return "", fmt.Errorf("%w: result is not hex: %v", errs.ErrRPC, err)
	}
	// contracts without the method (or EOAs) answer with no data at all
	if len(raw) == 0 {
		return "", nil
	}
	out, err := tokenURIABI.Unpack("tokenURI", raw)
	if err != nil {
		return "", fmt.Errorf("%w: decode tokenURI: %v", errs.ErrRPC, err)
	}
	if len(out) != 1 {
		return "", fmt.Errorf("%w: unexpected outputs: %d", errs.ErrRPC, len(out))
	}
	uri, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("%w: tokenURI not string", errs.ErrRPC)
	}
	return uri, nil
}

// Call issues a single eth_call and returns the hex encoded result.
func (c *Caller) Call(ctx context.Context, chainID uint64, call CallObject, block string) (string, error) {
	endpoint, ok := c.endpoints[chainID]
	if !ok {
		return "", fmt.Errorf("%w: no rpc endpoint for chain %d", errs.ErrUnknownChain, chainID)
	}

	start := time.Now()
	chain := strconv.FormatUint(chainID, 10)
	result, err := c.post(ctx, endpoint, call, block)
	if err != nil {
		c.metrics.ObserveRPC(chain, "error", time.Since(start))
		slog.Debug("eth_call failed", "chainId", chainID, "to", call.To, "error", err)
		return "", err
	}
	c.metrics.ObserveRPC(chain, "ok", time.Since(start))
	return result, nil
}

func (c *Caller) post(ctx context.Context, endpoint string, call CallObject, block string) (string, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "eth_call",
		Params:  []interface{}{call, block},
		ID:      1,
	})
	if err != nil {
		return "", fmt.Errorf("marshal eth_call: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrTransport, err)
	}
	req.Header.Set("Content-Type", rpcContentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: JSON-RPC call failed: %w", errs.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: JSON-RPC call failed (%s)", errs.ErrTransport, resp.Status)
	}

	var envelope rpcResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRPCRespBytes)).Decode(&envelope); err != nil {
		return "", fmt.Errorf("%w: malformed response: %v", errs.ErrRPC, err)
	}
	if envelope.Error != nil {
		return "", fmt.Errorf("%w: %s (code %d)", errs.ErrRPC, envelope.Error.Message, envelope.Error.Code)
	}

	var result string
	if err := json.Unmarshal(envelope.Result, &result); err != nil {
		return "", fmt.Errorf("%w: missing or non-string result", errs.ErrRPC)
	}
	return result, nil
}
