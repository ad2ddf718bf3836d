package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"testing"

	"guessescrow/internal/address"
	"guessescrow/internal/codec"
	"guessescrow/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestAddressCommand(t *testing.T) {
	owner := address.MustParse("BPFLoaderUpgradeab1e11111111111111111111111")
	out, err := run(t, "address", "--program", config.DefaultProgramID, "--owner", owner.String())
	require.NoError(t, err)

	var info addressInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))

	d, err := address.NewDeriver(address.MustParse(config.DefaultProgramID))
	require.NoError(t, err)
	game, bump, err := d.Game(owner)
	require.NoError(t, err)

	assert.Equal(t, d.House(), info.House)
	assert.Equal(t, d.HouseBump(), info.HouseBump)
	require.NotNil(t, info.Game)
	assert.Equal(t, game, *info.Game)
	assert.Equal(t, bump, *info.GameBump)
}

func TestDecodeCommand(t *testing.T) {
	owner := address.MustParse(config.DefaultProgramID)
	data := codec.EncodeGame(codec.Game{CommittedNumber: 7, Owner: owner, Settled: true})

	out, err := run(t, "decode", "game", base64.StdEncoding.EncodeToString(data))
	require.NoError(t, err)
	var g gameData
	require.NoError(t, json.Unmarshal([]byte(out), &g))
	assert.Equal(t, uint64(7), g.CommittedNumber)
	assert.Equal(t, owner, g.Owner)
	assert.True(t, g.Settled)

	out, err = run(t, "decode", "house", base64.StdEncoding.EncodeToString(codec.EncodeHouse(codec.House{RecordedBalance: 1500000000})))
	require.NoError(t, err)
	assert.Contains(t, out, `"recorded_balance_sol": "1.5"`)

	_, err = run(t, "decode", "game", base64.StdEncoding.EncodeToString(codec.EncodeHouse(codec.House{})))
	assert.ErrorIs(t, err, codec.ErrShortBuffer)

	_, err = run(t, "decode", "wallet", "AAAA")
	assert.Error(t, err)
}
