package contracts

import (
	"errors"
	"math/big"
	"testing"

	"github.com/compose-network/ronin-deployer/configs"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	org1 = TrustedOrganization{
		ConsensusAddr: common.HexToAddress("0x0000000000000000000000000000000000000a01"),
		Governor:      common.HexToAddress("0x0000000000000000000000000000000000000b01"),
		BridgeVoter:   common.HexToAddress("0x0000000000000000000000000000000000000c01"),
		Weight:        big.NewInt(100),
		AddedBlock:    big.NewInt(0),
	}
	org2 = TrustedOrganization{
		ConsensusAddr: common.HexToAddress("0x0000000000000000000000000000000000000a02"),
		Governor:      common.HexToAddress("0x0000000000000000000000000000000000000b02"),
		BridgeVoter:   common.HexToAddress("0x0000000000000000000000000000000000000c02"),
		Weight:        big.NewInt(200),
		AddedBlock:    big.NewInt(0),
	}
)

func trustedOrganizationEncoder(t *testing.T) *Encoder {
	t.Helper()

	compiled, err := EmbeddedABI(NameRoninTrustedOrganization)
	require.NoError(t, err)
	return NewEncoder(compiled)
}

func TestEncode_Deterministic(t *testing.T) {
	enc := trustedOrganizationEncoder(t)
	orgs := []TrustedOrganization{org1, org2}

	first, err := enc.Encode(MethodInitialize, orgs, big.NewInt(2), big.NewInt(3))
	require.NoError(t, err)
	second, err := enc.Encode(MethodInitialize, orgs, big.NewInt(2), big.NewInt(3))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, enc.abi.Methods[MethodInitialize].ID, first[:4])
	// selector + 3 head words + array length + 2 tuples of 5 words
	assert.Len(t, first, 4+32*3+32+2*5*32)
}

func TestEncode_OrderMatters(t *testing.T) {
	enc := trustedOrganizationEncoder(t)

	forward, err := enc.Encode(MethodInitialize, []TrustedOrganization{org1, org2}, big.NewInt(2), big.NewInt(3))
	require.NoError(t, err)

	swappedOrgs, err := enc.Encode(MethodInitialize, []TrustedOrganization{org2, org1}, big.NewInt(2), big.NewInt(3))
	require.NoError(t, err)
	assert.NotEqual(t, forward, swappedOrgs)

	swappedThreshold, err := enc.Encode(MethodInitialize, []TrustedOrganization{org1, org2}, big.NewInt(3), big.NewInt(2))
	require.NoError(t, err)
	assert.NotEqual(t, forward, swappedThreshold)
}

func TestEncode_RoundTripsThroughABI(t *testing.T) {
	enc := trustedOrganizationEncoder(t)

	payload, err := enc.Encode(MethodInitialize, []TrustedOrganization{org1}, big.NewInt(2), big.NewInt(3))
	require.NoError(t, err)

	values, err := enc.abi.Methods[MethodInitialize].Inputs.Unpack(payload[4:])
	require.NoError(t, err)
	require.Len(t, values, 3)
	assert.Equal(t, big.NewInt(2), values[1])
	assert.Equal(t, big.NewInt(3), values[2])
}

func TestEncode_RejectsShapeMismatch(t *testing.T) {
	enc := trustedOrganizationEncoder(t)
	orgs := []TrustedOrganization{org1}

	type wrongOrg struct {
		ConsensusAddr common.Address
		Governor      common.Address
	}

	tests := []struct {
		name string
		fn   string
		args []any
		want string
	}{
		{"unknown method", "initialise", []any{orgs, big.NewInt(2), big.NewInt(3)}, "no method"},
		{"missing argument", MethodInitialize, []any{orgs, big.NewInt(2)}, "expected 3 arguments, got 2"},
		{"extra argument", MethodInitialize, []any{orgs, big.NewInt(2), big.NewInt(3), big.NewInt(4)}, "expected 3 arguments, got 4"},
		{"plain int is not coerced", MethodInitialize, []any{orgs, 2, big.NewInt(3)}, "argument 1"},
		{"uint64 is not coerced", MethodInitialize, []any{orgs, big.NewInt(2), uint64(3)}, "argument 2"},
		{"nil argument", MethodInitialize, []any{nil, big.NewInt(2), big.NewInt(3)}, "argument 0"},
		{"single org instead of list", MethodInitialize, []any{org1, big.NewInt(2), big.NewInt(3)}, "want slice"},
		{"struct with missing fields", MethodInitialize, []any{[]wrongOrg{{}}, big.NewInt(2), big.NewInt(3)}, "struct fields"},
		{"arguments out of order", MethodInitialize, []any{big.NewInt(2), orgs, big.NewInt(3)}, "argument 0"},
		{"nil numerator", MethodInitialize, []any{orgs, (*big.Int)(nil), big.NewInt(3)}, "argument 1"},
		{"nil organization weight", MethodInitialize, []any{[]TrustedOrganization{org1, {ConsensusAddr: org2.ConsensusAddr, AddedBlock: big.NewInt(0)}}, big.NewInt(2), big.NewInt(3)}, "element 1: field Weight"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := enc.Encode(tt.fn, tt.args...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrEncoding))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEncode_AcceptsEmptyOrganizationList(t *testing.T) {
	enc := trustedOrganizationEncoder(t)

	fromNil, err := enc.Encode(MethodInitialize, []TrustedOrganization(nil), big.NewInt(2), big.NewInt(3))
	require.NoError(t, err)

	fromEmpty, err := enc.Encode(MethodInitialize, []TrustedOrganization{}, big.NewInt(2), big.NewInt(3))
	require.NoError(t, err)

	assert.Equal(t, fromEmpty, fromNil)
}

func TestEncodeConstructor_Proxy(t *testing.T) {
	compiled, err := EmbeddedABI(NameTransparentUpgradeableProxyV2)
	require.NoError(t, err)
	enc := NewEncoder(compiled)

	logic := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	admin := common.HexToAddress("0x00000000000000000000000000000000000000a2")

	packed, err := enc.EncodeConstructor(logic, admin, []byte{0xde, 0xad})
	require.NoError(t, err)
	assert.Equal(t, common.LeftPadBytes(logic.Bytes(), 32), packed[:32])
	assert.Equal(t, common.LeftPadBytes(admin.Bytes(), 32), packed[32:64])

	_, err = enc.EncodeConstructor(logic, admin)
	assert.True(t, errors.Is(err, ErrEncoding))

	_, err = enc.EncodeConstructor(logic.Hex(), admin, []byte{})
	assert.True(t, errors.Is(err, ErrEncoding), "hex strings are not addresses")
}

func TestNewTrustedOrganizationInit(t *testing.T) {
	init, err := NewTrustedOrganizationInit(configs.TrustedOrganizationConfig{
		TrustedOrganizations: []configs.TrustedOrganization{{
			ConsensusAddr: "0x0000000000000000000000000000000000000a01",
			Governor:      "0x0000000000000000000000000000000000000b01",
			BridgeVoter:   "0x0000000000000000000000000000000000000c01",
			Weight:        100,
		}},
		Numerator:   2,
		Denominator: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, []TrustedOrganization{org1}, init.TrustedOrganizations)

	enc := trustedOrganizationEncoder(t)
	fromConfig, err := enc.Encode(MethodInitialize, init.Args()...)
	require.NoError(t, err)
	direct, err := enc.Encode(MethodInitialize, []TrustedOrganization{org1}, big.NewInt(2), big.NewInt(3))
	require.NoError(t, err)
	assert.Equal(t, direct, fromConfig)

	_, err = NewTrustedOrganizationInit(configs.TrustedOrganizationConfig{
		TrustedOrganizations: []configs.TrustedOrganization{{ConsensusAddr: "0x12"}},
	})
	assert.True(t, errors.Is(err, ErrEncoding))
}
