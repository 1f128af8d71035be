// Package config holds the registry of known BLE scale configurations. The
// registry is constructed once and injected into the scanner and the
// controller factory; it is read-only after construction.
package config

import (
	"os"
	"strings"

	"github.com/fako1024/gatt"
	"github.com/pkg/errors"
	"github.com/spooltrack/blescale/pkg/protocol"
	"gopkg.in/yaml.v3"
)

// Well-known BLE identifiers used by the scale integration layer
const (
	WeightScaleServiceUUID = "0000181d-0000-1000-8000-00805f9b34fb"
	WeightMeasurementUUID  = "00002a9d-0000-1000-8000-00805f9b34fb"
	BatteryServiceUUID     = "0000180f-0000-1000-8000-00805f9b34fb"
	BatteryLevelUUID       = "00002a19-0000-1000-8000-00805f9b34fb"
	ClientCharConfigUUID   = "00002902-0000-1000-8000-00805f9b34fb"
	VendorScaleServiceUUID = "0000ffe0-0000-1000-8000-00805f9b34fb"
	VendorWeightCharUUID   = "0000ffe1-0000-1000-8000-00805f9b34fb"
)

// Registry entry IDs of the built-in configurations
const (
	IDVendorScale   = "vendor-ffe0"
	IDStandardScale = "wss-181d"
)

// ScaleConfig denotes one known scale model: its identifying service, the
// characteristic carrying weight frames and the decoder bound to it.
// Entries are immutable once loaded.
type ScaleConfig struct {
	ID             string           `yaml:"id"`
	Name           string           `yaml:"name"`
	Manufacturer   string           `yaml:"manufacturer"`
	ServiceUUID    string           `yaml:"service_uuid"`
	WeightCharUUID string           `yaml:"weight_char_uuid"`
	Decoder        protocol.Decoder `yaml:"decoder"`
}

// Registry denotes an immutable set of known scale configurations
type Registry struct {
	configs []ScaleConfig
}

// Defaults returns the built-in registry: the reverse-engineered vendor
// scale and the official Weight Scale Service profile.
func Defaults() *Registry {
	return &Registry{
		configs: []ScaleConfig{
			{
				ID:             IDVendorScale,
				Name:           "Generic BLE Scale",
				Manufacturer:   "Unbranded",
				ServiceUUID:    VendorScaleServiceUUID,
				WeightCharUUID: VendorWeightCharUUID,
				Decoder:        protocol.DecoderVendor,
			},
			{
				ID:             IDStandardScale,
				Name:           "Weight Scale Service",
				Manufacturer:   "Bluetooth SIG",
				ServiceUUID:    WeightScaleServiceUUID,
				WeightCharUUID: WeightMeasurementUUID,
				Decoder:        protocol.DecoderWSS,
			},
		},
	}
}

// New builds a registry from explicit entries
func New(configs ...ScaleConfig) *Registry {
	cc := make([]ScaleConfig, len(configs))
	copy(cc, configs)

	return &Registry{configs: cc}
}

// LoadFile overlays additional configurations from a YAML file on top of the
// defaults. Entries sharing an ID with a built-in replace it.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read scale config file %q", path)
	}

	return Load(data)
}

// Load overlays additional YAML configurations on top of the defaults
func Load(data []byte) (*Registry, error) {
	var extra struct {
		Scales []ScaleConfig `yaml:"scales"`
	}
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return nil, errors.Wrap(err, "failed to parse scale config")
	}

	reg := Defaults()
	for _, c := range extra.Scales {
		if c.ID == "" || c.ServiceUUID == "" || c.WeightCharUUID == "" {
			return nil, errors.Errorf("incomplete scale config entry: %+v", c)
		}

		replaced := false
		for i := range reg.configs {
			if reg.configs[i].ID == c.ID {
				reg.configs[i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			reg.configs = append(reg.configs, c)
		}
	}

	return reg, nil
}

// All returns a copy of all registered configurations
func (r *Registry) All() []ScaleConfig {
	out := make([]ScaleConfig, len(r.configs))
	copy(out, r.configs)

	return out
}

// ByID returns the configuration with the given ID, if any
func (r *Registry) ByID(id string) (ScaleConfig, bool) {
	for _, c := range r.configs {
		if c.ID == id {
			return c, true
		}
	}

	return ScaleConfig{}, false
}

// MatchService returns the configuration whose service UUID equals the given
// advertised UUID (case-insensitive, short 16-bit forms matched against the
// base UUID expansion).
func (r *Registry) MatchService(uuid string) (ScaleConfig, bool) {
	for _, c := range r.configs {
		if UUIDEqual(c.ServiceUUID, uuid) {
			return c, true
		}
	}

	return ScaleConfig{}, false
}

// ServiceFilters returns the scan filter UUID list derived from all known
// configurations. An empty result means scanning should run unfiltered.
func (r *Registry) ServiceFilters() []gatt.UUID {
	var out []gatt.UUID
	for _, c := range r.configs {
		u, err := gatt.ParseUUID(NormalizeUUID(c.ServiceUUID))
		if err != nil {
			continue
		}
		out = append(out, u)
	}

	return out
}

// NormalizeUUID lowercases a UUID and strips any dashes, yielding the compact
// form the gatt stack reports.
func NormalizeUUID(u string) string {
	return strings.ToLower(strings.ReplaceAll(u, "-", ""))
}

// UUIDEqual compares two UUIDs case-insensitively, treating short 16-bit
// identifiers as equal to their Bluetooth base UUID expansion.
func UUIDEqual(a, b string) bool {
	na, nb := NormalizeUUID(a), NormalizeUUID(b)
	if na == nb {
		return true
	}

	return shortForm(na) == shortForm(nb)
}

// shortForm reduces a full 128-bit Bluetooth base UUID to its 16-bit short
// identifier, leaving other UUIDs untouched.
func shortForm(n string) string {
	const baseSuffix = "00001000800000805f9b34fb"

	if len(n) == 32 && strings.HasPrefix(n, "0000") && strings.HasSuffix(n, baseSuffix) {
		return n[4:8]
	}

	return n
}
