package scoreconfig

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeOver_PartialOverride(t *testing.T) {
	stored := json.RawMessage(`{"sip_base_bps": 140, "options": {"horizon_months": 36}}`)

	merged, err := MergeOver(DefaultSIP(), stored)
	require.NoError(t, err)

	assert.Equal(t, 140.0, merged.BaseBPS)
	assert.Equal(t, 36, merged.Options.HorizonMonths)
	// Untouched fields keep defaults.
	assert.Equal(t, -3.0, merged.Options.LSGatePct)
	assert.Equal(t, 50_000.0, merged.Options.LSGateMinRupees)
	assert.Len(t, merged.AmountBonus, 3)
}

func TestMergeOver_EmptyPayloadKeepsDefaults(t *testing.T) {
	merged, err := MergeOver(DefaultLumpsum(), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultLumpsum(), merged)
}

func TestMergeOver_MalformedPayload(t *testing.T) {
	_, err := MergeOver(DefaultReferral(), json.RawMessage(`{"family_head_factor": `))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "merge stored payload")
}

func TestHash_Deterministic(t *testing.T) {
	h1, err := Hash(DefaultLumpsum())
	require.NoError(t, err)
	h2, err := Hash(DefaultLumpsum())
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 32) // md5 hex
}

func TestHash_KeyOrderIndependent(t *testing.T) {
	a := map[string]any{"alpha": 1.0, "beta": map[string]any{"x": 2.0, "y": 3.0}}
	b := map[string]any{"beta": map[string]any{"y": 3.0, "x": 2.0}, "alpha": 1.0}

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, err := Hash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestHash_ChangesWithConfig(t *testing.T) {
	base, err := Hash(DefaultSIP())
	require.NoError(t, err)

	tweaked := DefaultSIP()
	tweaked.BaseBPS = 130
	changed, err := Hash(tweaked)
	require.NoError(t, err)

	assert.NotEqual(t, base, changed)
}

func TestCanonicalJSON_SortsKeys(t *testing.T) {
	out, err := CanonicalJSON(struct {
		Zebra int `json:"zebra"`
		Apple int `json:"apple"`
	}{1, 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"apple":2,"zebra":1}`, string(out))
	// Canonical form lists apple before zebra regardless of struct order.
	assert.Equal(t, `{"apple":2,"zebra":1}`, string(out))
}
