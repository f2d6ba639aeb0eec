package ipfs

import (
	"testing"

	"github.com/nftgp/http-gateway/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cidV0 = "QmTQrPGDf2xigAK2ptDhdkvSF2EfRMXpaFGJKBNRKYRBHv"
	cidV1 = "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"
)

func TestRewrite(t *testing.T) {
	g := NewGateway("")
	assert.Equal(t, DefaultGateway, g.Base())

	cases := map[string]string{
		"ipfs://" + cidV0:                 "https://ipfs.io/ipfs/" + cidV0,
		"ipfs://" + cidV0 + "/40913.json": "https://ipfs.io/ipfs/" + cidV0 + "/40913.json",
		"ipfs://ipfs/" + cidV0:            "https://ipfs.io/ipfs/" + cidV0,
		"IPFS://" + cidV1 + "?x=1":        "https://ipfs.io/ipfs/" + cidV1 + "?x=1",
	}
	for in, want := range cases {
		got, err := g.Rewrite(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
}

func TestRewriteCustomBase(t *testing.T) {
	g := NewGateway("http://127.0.0.1:8080/ipfs")
	got, err := g.Rewrite("ipfs://" + cidV0 + "/a.png")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/ipfs/"+cidV0+"/a.png", got)
}

func TestRewriteErrors(t *testing.T) {
	g := NewGateway("")
	_, err := g.Rewrite("https://" + cidV0)
	assert.ErrorIs(t, err, errs.ErrParse)

	for _, in := range []string{"ipfs://not-a-cid/x", "ipfs://"} {
		_, err := g.Rewrite(in)
		assert.ErrorIs(t, err, errs.ErrInvalidCID, in)
		assert.NotErrorIs(t, err, errs.ErrParse, in)
	}
}

func TestIsIPFS(t *testing.T) {
	assert.True(t, IsIPFS("ipfs://x"))
	assert.True(t, IsIPFS("Ipfs://x"))
	assert.False(t, IsIPFS("https://ipfs.io/ipfs/x"))
}
