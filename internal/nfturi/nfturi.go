package nfturi

import (
	"fmt"
	"math/big"
	"net/url"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/nftgp/http-gateway/internal/errs"
)

const (
	Scheme      = "nft"
	LatestBlock = "latest"
)

// Block is the block an NFT URI is pinned to. A nil *Block on NftURI means the
// URI did not name one.
type Block struct {
	Number uint64
	Latest bool
}

// Param renders the block the way eth_call expects it.
func (b *Block) Param() string {
	if b == nil || b.Latest {
		return LatestBlock
	}
	return hexutil.EncodeUint64(b.Number)
}

func (b *Block) String() string {
	if b == nil || b.Latest {
		return LatestBlock
	}
	return strconv.FormatUint(b.Number, 10)
}

// NftURI identifies one token on one chain, optionally at one block:
//
//	nft://[from@]chainId[.block]/contractAddress/tokenId[/filename][?query][#fragment]
type NftURI struct {
	ChainID         uint64
	Block           *Block
	From            string
	ContractAddress string
	TokenID         string
	Filename        string
	Query           string
	Fragment        string
}

// Parse is a pure function; it performs no I/O.
func Parse(raw string) (*NftURI, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrParse, err)
	}
	if !strings.EqualFold(u.Scheme, Scheme) {
		return nil, fmt.Errorf("%w: expected %s:// scheme, got %q", errs.ErrParse, Scheme, u.Scheme)
	}

	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing chain id", errs.ErrParse)
	}
	chainPart, blockPart, hasBlock := strings.Cut(u.Host, ".")

	chainID, err := strconv.ParseUint(chainPart, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid chain id %q", errs.ErrParse, chainPart)
	}

	n := &NftURI{
		ChainID:  chainID,
		Query:    u.RawQuery,
		Fragment: u.Fragment,
	}

	if hasBlock {
		if strings.EqualFold(blockPart, LatestBlock) {
			n.Block = &Block{Latest: true}
		} else {
			number, err := strconv.ParseUint(blockPart, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid block %q", errs.ErrParse, blockPart)
			}
			n.Block = &Block{Number: number}
		}
	}

	if u.User != nil {
		n.From = u.User.Username()
	}

	// The filename is kept escaped, exactly as it appeared in the URI.
	segments := strings.SplitN(strings.TrimPrefix(u.EscapedPath(), "/"), "/", 3)
	if len(segments) < 2 || segments[0] == "" {
		return nil, fmt.Errorf("%w: missing contract address or token id", errs.ErrParse)
	}
	n.ContractAddress = segments[0]

	tokenID := segments[1]
	if tokenID == "" {
		return nil, fmt.Errorf("%w: missing token id", errs.ErrParse)
	}
	if _, ok := ParseTokenID(tokenID); !ok {
		return nil, fmt.Errorf("%w: invalid token id %q", errs.ErrParse, tokenID)
	}
	n.TokenID = tokenID

	if len(segments) == 3 {
		n.Filename = segments[2]
	}

	return n, nil
}

// ParseTokenID accepts non-negative decimal integers only.
func ParseTokenID(s string) (*big.Int, bool) {
	if s == "" || strings.TrimLeft(s, "0123456789") != "" {
		return nil, false
	}
	id, ok := new(big.Int).SetString(s, 10)
	return id, ok
}

// Pinned reports whether the URI names a concrete block number, which makes
// the resolved asset immutable.
func (n *NftURI) Pinned() bool {
	return n.Block != nil && !n.Block.Latest
}

func (n *NftURI) String() string {
	var b strings.Builder
	b.WriteString(Scheme + "://")
	if n.From != "" {
		b.WriteString(n.From)
		b.WriteByte('@')
	}
	b.WriteString(strconv.FormatUint(n.ChainID, 10))
	if n.Block != nil {
		b.WriteByte('.')
		b.WriteString(n.Block.String())
	}
	b.WriteByte('/')
	b.WriteString(n.ContractAddress)
	b.WriteByte('/')
	b.WriteString(n.TokenID)
	if n.Filename != "" {
		b.WriteByte('/')
		b.WriteString(n.Filename)
	}
	if n.Query != "" {
		b.WriteByte('?')
		b.WriteString(n.Query)
	}
	if n.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(n.Fragment)
	}
	return b.String()
}
