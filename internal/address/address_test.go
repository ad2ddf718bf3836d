package address

import (
	"bytes"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var loaderProgram = MustParse("BPFLoaderUpgradeab1e11111111111111111111111")

func TestCreateProgramAddressKnownVectors(t *testing.T) {
	derived, err := CreateProgramAddress([][]byte{[]byte(""), {1}}, loaderProgram)
	require.NoError(t, err)
	assert.Equal(t, "BwqrghZA2htAcqq8dzP1WDAhTXYTYWj7CHxF5j7TDBAe", derived.String())

	derived, err = CreateProgramAddress([][]byte{[]byte("Talking"), []byte("Squirrels")}, loaderProgram)
	require.NoError(t, err)
	assert.Equal(t, "2fnQrngrQT4SeLcdToJAD96phoEjNL2man2kfRLCASVk", derived.String())
}

func TestCreateProgramAddressSeedLimits(t *testing.T) {
	tooLong := bytes.Repeat([]byte{127}, MaxSeedLen+1)
	_, err := CreateProgramAddress([][]byte{tooLong}, loaderProgram)
	assert.ErrorIs(t, err, ErrMaxSeedLength)

	_, err = CreateProgramAddress([][]byte{[]byte("short_seed"), tooLong}, loaderProgram)
	assert.ErrorIs(t, err, ErrMaxSeedLength)

	tooMany := make([][]byte, MaxSeeds+1)
	for i := range tooMany {
		tooMany[i] = []byte{byte(i + 1)}
	}
	_, err = CreateProgramAddress(tooMany, loaderProgram)
	assert.ErrorIs(t, err, ErrMaxSeedLength)

	_, _, err = FindProgramAddress(tooMany[:MaxSeeds], loaderProgram)
	assert.ErrorIs(t, err, ErrMaxSeedLength)
}

func TestFindProgramAddressIsOffCurveAndReproducible(t *testing.T) {
	derived, bump, err := FindProgramAddress([][]byte{HouseSeed}, loaderProgram)
	require.NoError(t, err)
	assert.False(t, derived.IsOnCurve())

	again, err := CreateProgramAddress([][]byte{HouseSeed, {bump}}, loaderProgram)
	require.NoError(t, err)
	assert.Equal(t, derived, again)
}

func TestDeriverGameAddressPerOwner(t *testing.T) {
	d, err := NewDeriver(loaderProgram)
	require.NoError(t, err)

	alice := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{1}, ed25519.SeedSize)).Public().(ed25519.PublicKey)
	bob := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{2}, ed25519.SeedSize)).Public().(ed25519.PublicKey)
	aliceID, err := FromBytes(alice)
	require.NoError(t, err)
	bobID, err := FromBytes(bob)
	require.NoError(t, err)

	// 玩家公钥本身在曲线上，派生地址不在
	assert.True(t, aliceID.IsOnCurve())

	g1, _, err := d.Game(aliceID)
	require.NoError(t, err)
	g2, _, err := d.Game(aliceID)
	require.NoError(t, err)
	g3, _, err := d.Game(bobID)
	require.NoError(t, err)

	assert.Equal(t, g1, g2)
	assert.NotEqual(t, g1, g3)
	assert.NotEqual(t, d.House(), g1)
	assert.False(t, g1.IsOnCurve())
}

func TestNewDeriverRejectsZeroProgram(t *testing.T) {
	_, err := NewDeriver(Address{})
	assert.ErrorIs(t, err, ErrEmptyProgramID)
}

func TestParse(t *testing.T) {
	_, err := Parse("")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = Parse("0OIl")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = Parse("3mJr7AoUXx2Wqd")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	a := MustParse("CKWtwTziPzvp7VAVi8tbbBurWbSaG4Fx5icGdbs2n5ck")
	assert.Equal(t, "CKWtwTziPzvp7VAVi8tbbBurWbSaG4Fx5icGdbs2n5ck", a.String())

	var b Address
	require.NoError(t, b.UnmarshalText([]byte(a.String())))
	assert.Equal(t, a, b)
}
