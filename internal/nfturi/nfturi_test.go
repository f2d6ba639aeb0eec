package nfturi

import (
	"testing"

	"github.com/nftgp/http-gateway/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contract = "0x2a46f2ffd99e19a89476e2f62270e0a35bbf0756"

func TestParse(t *testing.T) {
	t.Run("minimal", func(t *testing.T) {
		n, err := Parse("nft://1/" + contract + "/40913")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), n.ChainID)
		assert.Nil(t, n.Block)
		assert.Equal(t, "", n.From)
		assert.Equal(t, contract, n.ContractAddress)
		assert.Equal(t, "40913", n.TokenID)
		assert.Equal(t, "", n.Filename)
		assert.False(t, n.Pinned())
	})

	t.Run("numeric block and escaped filename", func(t *testing.T) {
		n, err := Parse("nft://1.123/" + contract + "/40913/EVERYDAYS%3A%20THE%20FIRST%205000%20DAYS.jpg")
		require.NoError(t, err)
		require.NotNil(t, n.Block)
		assert.Equal(t, uint64(123), n.Block.Number)
		assert.False(t, n.Block.Latest)
		assert.Equal(t, "0x7b", n.Block.Param())
		assert.Equal(t, "EVERYDAYS%3A%20THE%20FIRST%205000%20DAYS.jpg", n.Filename)
		assert.True(t, n.Pinned())
	})

	t.Run("latest block", func(t *testing.T) {
		n, err := Parse("nft://1.latest/" + contract + "/40913/f.jpg")
		require.NoError(t, err)
		require.NotNil(t, n.Block)
		assert.True(t, n.Block.Latest)
		assert.Equal(t, "latest", n.Block.Param())
		assert.Equal(t, "f.jpg", n.Filename)
		assert.False(t, n.Pinned())
	})

	t.Run("from address", func(t *testing.T) {
		n, err := Parse("nft://0xabc@1/" + contract + "/40913")
		require.NoError(t, err)
		assert.Equal(t, "0xabc", n.From)
	})

	t.Run("query and fragment", func(t *testing.T) {
		n, err := Parse("nft://5/" + contract + "/7?size=large#top")
		require.NoError(t, err)
		assert.Equal(t, "size=large", n.Query)
		assert.Equal(t, "top", n.Fragment)
	})

	t.Run("nested filename", func(t *testing.T) {
		n, err := Parse("nft://1/" + contract + "/1/a/b.png")
		require.NoError(t, err)
		assert.Equal(t, "a/b.png", n.Filename)
	})
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"wrong scheme":       "https://1/" + contract + "/1",
		"missing chain":      "nft:///" + contract + "/1",
		"non-numeric chain":  "nft://mainnet/" + contract + "/1",
		"non-numeric block":  "nft://1.abc/" + contract + "/1",
		"missing token":      "nft://1/" + contract,
		"empty token":        "nft://1/" + contract + "/",
		"negative token":     "nft://1/" + contract + "/-1",
		"non-numeric token":  "nft://1/" + contract + "/0x10",
		"missing everything": "nft://1",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(raw)
			assert.ErrorIs(t, err, errs.ErrParse)
		})
	}
}

func TestString(t *testing.T) {
	raw := "nft://0xabc@1.123/" + contract + "/40913/f.jpg?x=1#y"
	n, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, n.String())
}

func TestBlockParamDefault(t *testing.T) {
	var b *Block
	assert.Equal(t, "latest", b.Param())
}
