package scale_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperdot/hyperdot-node/chain/scale"
	"github.com/hyperdot/hyperdot-node/chain/scale/scaletest"
)

func TestDecodeMetadata(t *testing.T) {
	rt := scaletest.NewRuntime("polkadot", 9430)
	md, err := scale.DecodeMetadata(rt.Metadata())
	require.NoError(t, err)

	require.Len(t, md.Pallets, 4)
	require.Equal(t, rt.RuntimeCall, md.RuntimeType)
	require.Equal(t, rt.Extrinsic, md.Extrinsic.Type)
	require.EqualValues(t, 4, md.Extrinsic.Version)
	require.Len(t, md.Extrinsic.SignedExtensions, 2)
	require.Equal(t, "CheckNonce", md.Extrinsic.SignedExtensions[0].Identifier)

	balances, ok := md.Pallet("Balances")
	require.True(t, ok)
	require.EqualValues(t, scaletest.BalancesIndex, balances.Index)
	require.NotNil(t, balances.CallType)
	require.NotNil(t, balances.EventType)
	require.Nil(t, balances.ErrorType)

	_, events, err := md.StorageEntry("System", "Events")
	require.NoError(t, err)
	require.True(t, events.Plain)
	require.False(t, events.Optional)
	require.Equal(t, rt.EventRecords, events.ValueType)

	_, author, err := md.StorageEntry("Authorship", "Author")
	require.NoError(t, err)
	require.True(t, author.Optional)

	_, account, err := md.StorageEntry("Balances", "Account")
	require.NoError(t, err)
	require.False(t, account.Plain)
	require.Equal(t, []scale.StorageHasher{scale.HasherBlake2_128Concat}, account.Hashers)

	_, _, err = md.StorageEntry("Staking", "Ledger")
	require.Error(t, err)
	_, _, err = md.StorageEntry("System", "Missing")
	require.Error(t, err)

	ext, err := md.Registry.Type(rt.Extrinsic)
	require.NoError(t, err)
	call, ok := ext.Param("Call")
	require.True(t, ok)
	require.Equal(t, rt.RuntimeCall, call)
	_, ok = ext.Param("Missing")
	require.False(t, ok)
}

func TestDecodeMetadataVersionConstant(t *testing.T) {
	rt := scaletest.NewRuntime("kusama", 9370)
	md, err := scale.DecodeMetadata(rt.Metadata())
	require.NoError(t, err)

	c, err := md.Constant("System", "Version")
	require.NoError(t, err)
	v, err := md.Registry.DecodeBytes(c.Value, c.Type)
	require.NoError(t, err)
	version, ok := v.(*scale.Composite)
	require.True(t, ok)

	name, ok := version.Get("spec_name")
	require.True(t, ok)
	require.Equal(t, "kusama", name)
	specVersion, ok := version.Get("spec_version")
	require.True(t, ok)
	n, ok := scale.AsUint64(specVersion)
	require.True(t, ok)
	require.EqualValues(t, 9370, n)

	_, err = md.Constant("System", "BlockHashCount")
	require.Error(t, err)
}

func TestDecodeMetadataRejects(t *testing.T) {
	_, err := scale.DecodeMetadata([]byte("atem\x0e"))
	require.ErrorContains(t, err, "magic")

	_, err = scale.DecodeMetadata([]byte("meta\x0f"))
	require.ErrorContains(t, err, "unsupported metadata version 15")

	raw := scaletest.NewRuntime("polkadot", 1).Metadata()
	_, err = scale.DecodeMetadata(raw[:len(raw)/2])
	require.Error(t, err)
}

func TestVariantByIndex(t *testing.T) {
	rt := scaletest.NewRuntime("polkadot", 9430)
	md, err := scale.DecodeMetadata(rt.Metadata())
	require.NoError(t, err)

	addr, err := md.Registry.Type(rt.MultiAddress)
	require.NoError(t, err)
	require.Equal(t, scale.KindVariant, addr.Def.Kind)

	var def *scale.VariantDef
	def, ok := addr.VariantByIndex(3)
	require.True(t, ok)
	require.Equal(t, "Address32", def.Name)
	require.Len(t, def.Fields, 1)

	_, ok = addr.VariantByIndex(9)
	require.False(t, ok)
}
