package driver

import (
	"context"
	"testing"

	"github.com/fako1024/gatt"
	"github.com/spooltrack/blescale/pkg/bt"
	"github.com/spooltrack/blescale/pkg/config"
	"github.com/spooltrack/blescale/pkg/generic"
	"github.com/spooltrack/blescale/pkg/scale"
	"github.com/spooltrack/blescale/pkg/wss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPeripheral satisfies the session layer's peripheral surface with
// identity only; the factory never touches the radio
type stubPeripheral struct {
	id string
}

func (p *stubPeripheral) ID() string          { return p.id }
func (p *stubPeripheral) Name() string        { return "Test Scale" }
func (p *stubPeripheral) SetMTU(uint16) error { return nil }

func (p *stubPeripheral) DiscoverServices([]gatt.UUID) ([]*gatt.Service, error) {
	return nil, nil
}

func (p *stubPeripheral) DiscoverCharacteristics([]gatt.UUID, *gatt.Service) ([]*gatt.Characteristic, error) {
	return nil, nil
}

func (p *stubPeripheral) DiscoverDescriptors([]gatt.UUID, *gatt.Characteristic) ([]*gatt.Descriptor, error) {
	return nil, nil
}

func (p *stubPeripheral) ReadCharacteristic(*gatt.Characteristic) ([]byte, error) {
	return nil, nil
}

func (p *stubPeripheral) WriteCharacteristic(*gatt.Characteristic, []byte, bool) error {
	return nil
}

func (p *stubPeripheral) WriteDescriptor(*gatt.Descriptor, []byte) error {
	return nil
}

func (p *stubPeripheral) SetNotifyValue(*gatt.Characteristic, func(*gatt.Characteristic, []byte, error)) error {
	return nil
}

type stubDevice struct{}

func (stubDevice) Connect(bt.Peripheral) error          { return nil }
func (stubDevice) CancelConnection(bt.Peripheral) error { return nil }

func newFactoryArgs() (*bt.SessionManager, bt.Peripheral) {
	return bt.NewSessionManager(stubDevice{}), &stubPeripheral{id: "aa:bb:cc:dd:ee:01"}
}

func TestFactoryVendorConfig(t *testing.T) {
	mgr, p := newFactoryArgs()
	cfg, ok := config.Defaults().ByID(config.IDVendorScale)
	require.True(t, ok)

	ctrl := NewController(mgr, p, &cfg, &scale.NullLogger{})

	_, isGeneric := ctrl.(*generic.Scale)
	assert.True(t, isGeneric)
	assert.True(t, ctrl.Supports(scale.CommandTare))
	assert.Equal(t, config.IDVendorScale, ctrl.DeviceInfo().Protocol)
}

func TestFactoryStandardConfig(t *testing.T) {
	mgr, p := newFactoryArgs()
	cfg, ok := config.Defaults().ByID(config.IDStandardScale)
	require.True(t, ok)

	ctrl := NewController(mgr, p, &cfg, &scale.NullLogger{})

	_, isStub := ctrl.(*wss.Scale)
	assert.True(t, isStub)
	assert.False(t, ctrl.Supports(scale.CommandTare))
	assert.Equal(t, scale.ResultNotSupported, ctrl.SetUnit(context.Background(), scale.UnitGrams).Kind)
}

func TestFactoryUnmatchedDeviceFallsBack(t *testing.T) {
	mgr, p := newFactoryArgs()

	ctrl := NewController(mgr, p, nil, &scale.NullLogger{})

	_, isGeneric := ctrl.(*generic.Scale)
	assert.True(t, isGeneric, "unmatched devices must get the vendor controller with heuristic decoding")
	assert.Equal(t, config.IDVendorScale, ctrl.DeviceInfo().Protocol)
}

func TestFactoryCustomConfigDefaultsDecoder(t *testing.T) {
	mgr, p := newFactoryArgs()
	cfg := &config.ScaleConfig{
		ID:             "acme-cafe",
		ServiceUUID:    "0000cafe-0000-1000-8000-00805f9b34fb",
		WeightCharUUID: "0000beef-0000-1000-8000-00805f9b34fb",
	}

	ctrl := NewController(mgr, p, cfg, &scale.NullLogger{})

	_, isGeneric := ctrl.(*generic.Scale)
	assert.True(t, isGeneric)
	assert.Equal(t, "acme-cafe", ctrl.DeviceInfo().Protocol)
}
