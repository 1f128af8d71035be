package config

import (
	"testing"

	"github.com/spooltrack/blescale/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	reg := Defaults()

	require.Len(t, reg.All(), 2)

	vendor, ok := reg.ByID(IDVendorScale)
	require.True(t, ok)
	assert.Equal(t, VendorScaleServiceUUID, vendor.ServiceUUID)
	assert.Equal(t, protocol.DecoderVendor, vendor.Decoder)

	wss, ok := reg.ByID(IDStandardScale)
	require.True(t, ok)
	assert.Equal(t, protocol.DecoderWSS, wss.Decoder)

	_, ok = reg.ByID("nonexistent")
	assert.False(t, ok)
}

func TestMatchService(t *testing.T) {
	reg := Defaults()

	// Full form, mixed case and dashes
	cfg, ok := reg.MatchService("0000FFE0-0000-1000-8000-00805F9B34FB")
	require.True(t, ok)
	assert.Equal(t, IDVendorScale, cfg.ID)

	// Compact form as the stack reports it
	cfg, ok = reg.MatchService("0000ffe00000100080000080 5f9b34fb")
	assert.False(t, ok, "malformed UUIDs must not match")

	cfg, ok = reg.MatchService("0000ffe000001000800000805f9b34fb")
	require.True(t, ok)
	assert.Equal(t, IDVendorScale, cfg.ID)

	// 16-bit short form against the base UUID expansion
	cfg, ok = reg.MatchService("ffe0")
	require.True(t, ok)
	assert.Equal(t, IDVendorScale, cfg.ID)

	cfg, ok = reg.MatchService("181d")
	require.True(t, ok)
	assert.Equal(t, IDStandardScale, cfg.ID)

	_, ok = reg.MatchService("180f")
	assert.False(t, ok)
}

func TestUUIDEqual(t *testing.T) {
	assert.True(t, UUIDEqual("FFE1", "0000ffe1-0000-1000-8000-00805f9b34fb"))
	assert.True(t, UUIDEqual("0000ffe1-0000-1000-8000-00805f9b34fb", "0000ffe100001000800000805f9b34fb"))
	assert.False(t, UUIDEqual("ffe1", "ffe0"))

	// A custom 128-bit UUID outside the base range never reduces to a short
	// form
	assert.False(t, UUIDEqual("ffe1", "0000ffe1-0000-1000-8000-00805f9b34fc"))
}

func TestLoadOverlay(t *testing.T) {
	data := []byte(`
scales:
  - id: acme-cafe
    name: ACME Kitchen Scale
    manufacturer: ACME
    service_uuid: 0000cafe-0000-1000-8000-00805f9b34fb
    weight_char_uuid: 0000beef-0000-1000-8000-00805f9b34fb
    decoder: heuristic
  - id: vendor-ffe0
    name: Replaced Vendor Scale
    service_uuid: 0000ffe0-0000-1000-8000-00805f9b34fb
    weight_char_uuid: 0000ffe1-0000-1000-8000-00805f9b34fb
    decoder: vendor
`)

	reg, err := Load(data)
	require.NoError(t, err)

	// One new entry, one replaced builtin
	require.Len(t, reg.All(), 3)

	custom, ok := reg.ByID("acme-cafe")
	require.True(t, ok)
	assert.Equal(t, protocol.DecoderHeuristic, custom.Decoder)

	vendor, ok := reg.ByID(IDVendorScale)
	require.True(t, ok)
	assert.Equal(t, "Replaced Vendor Scale", vendor.Name)

	cfg, ok := reg.MatchService("cafe")
	require.True(t, ok)
	assert.Equal(t, "acme-cafe", cfg.ID)
}

func TestLoadRejectsIncompleteEntries(t *testing.T) {
	_, err := Load([]byte("scales:\n  - id: broken\n"))
	assert.Error(t, err)

	_, err = Load([]byte("scales: ["))
	assert.Error(t, err)
}

func TestServiceFilters(t *testing.T) {
	filters := Defaults().ServiceFilters()
	require.Len(t, filters, 2)

	// Entries with unparseable UUIDs are skipped instead of failing the scan
	reg := New(ScaleConfig{
		ID:          "broken",
		ServiceUUID: "not-a-uuid",
	})
	assert.Empty(t, reg.ServiceFilters())
}
