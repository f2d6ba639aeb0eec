package ipfs

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/nftgp/http-gateway/internal/errs"
)

const DefaultGateway = "https://ipfs.io/ipfs/"

// some contracts return ipfs://ipfs/<cid> instead of ipfs://<cid>
var ipfsPrefix = regexp.MustCompile(`(?i)^ipfs://(ipfs/)?`)

// Gateway rewrites ipfs:// URIs into URLs served by an HTTP gateway.
type Gateway struct {
	base string
}

func NewGateway(base string) *Gateway {
	if base == "" {
		base = DefaultGateway
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &Gateway{base: base}
}

func (g *Gateway) Base() string {
	return g.base
}

// Rewrite substitutes the ipfs scheme with the gateway base URL. The first path
// segment must be a valid CID.
func (g *Gateway) Rewrite(uri string) (string, error) {
	loc := ipfsPrefix.FindStringIndex(uri)
	if loc == nil {
		return "", fmt.Errorf("%w: %q is not an ipfs URI", errs.ErrParse, uri)
	}
	rest := uri[loc[1]:]

	root := rest
	if i := strings.IndexAny(root, "/?#"); i >= 0 {
		root = root[:i]
	}
	if _, err := cid.Decode(root); err != nil {
		return "", fmt.Errorf("%w %q: %v", errs.ErrInvalidCID, root, err)
	}

	return g.base + rest, nil
}

// IsIPFS reports whether uri uses the ipfs scheme.
func IsIPFS(uri string) bool {
	return ipfsPrefix.MatchString(uri)
}
