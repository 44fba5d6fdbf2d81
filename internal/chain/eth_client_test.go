package chain

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rayking12/celo-simple-donation/internal/config"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	key, err := parseKey("")
	require.NoError(t, err)
	require.Nil(t, key)

	generated, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := hexutil.Encode(crypto.FromECDSA(generated))

	key, err = parseKey(hexKey)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(generated.PublicKey), crypto.PubkeyToAddress(key.PublicKey))

	account, err := accountFromKey(hexKey)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(generated.PublicKey), account)

	_, err = parseKey("not-hex")
	require.Error(t, err)
}

func TestDial_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Dial(ctx, config.ChainConfig{ChainType: "celo"})
	require.ErrorContains(t, err, "no RPC URL configured")

	_, err = Dial(ctx, config.ChainConfig{ChainType: "celo", RpcUrl: "http://127.0.0.1:1", DialAttempts: 1})
	require.ErrorContains(t, err, "client connection test failed")
}
