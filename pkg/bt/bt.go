// Package bt owns the GATT session layer: the single-session connection
// state machine and the tare command dispatcher. It drives the radio through
// narrow interfaces satisfied by the fako1024/gatt types so the state
// machine can be exercised against fakes.
package bt

import (
	"github.com/fako1024/gatt"
	"github.com/pkg/errors"
)

// Notification-enable / disable values for the client characteristic
// configuration descriptor
var (
	cccdEnableNotify  = []byte{0x01, 0x00}
	cccdDisableNotify = []byte{0x00, 0x00}
)

// Peripheral is the subset of gatt.Peripheral this layer drives
type Peripheral interface {
	ID() string
	Name() string
	SetMTU(mtu uint16) error
	DiscoverServices(ss []gatt.UUID) ([]*gatt.Service, error)
	DiscoverCharacteristics(cc []gatt.UUID, s *gatt.Service) ([]*gatt.Characteristic, error)
	DiscoverDescriptors(dd []gatt.UUID, c *gatt.Characteristic) ([]*gatt.Descriptor, error)
	ReadCharacteristic(c *gatt.Characteristic) ([]byte, error)
	WriteCharacteristic(c *gatt.Characteristic, b []byte, noRsp bool) error
	WriteDescriptor(d *gatt.Descriptor, b []byte) error
	SetNotifyValue(c *gatt.Characteristic, f func(c *gatt.Characteristic, b []byte, err error)) error
}

// Device is the subset of gatt.Device used for link management
type Device interface {
	Connect(p Peripheral) error
	CancelConnection(p Peripheral) error
}

// CharacteristicWriter is the single-method surface the command dispatcher
// needs
type CharacteristicWriter interface {
	WriteCharacteristic(c *gatt.Characteristic, b []byte, noRsp bool) error
}

// gattDevice adapts a real gatt.Device to the narrow Device interface
type gattDevice struct {
	dev gatt.Device
}

// WrapDevice adapts a gatt.Device for use with the session manager
func WrapDevice(dev gatt.Device) Device {
	return gattDevice{dev: dev}
}

func (d gattDevice) Connect(p Peripheral) error {
	gp, ok := p.(gatt.Peripheral)
	if !ok {
		return errors.New("peripheral does not originate from the gatt stack")
	}

	return d.dev.Connect(gp)
}

func (d gattDevice) CancelConnection(p Peripheral) error {
	gp, ok := p.(gatt.Peripheral)
	if !ok {
		return errors.New("peripheral does not originate from the gatt stack")
	}

	return d.dev.CancelConnection(gp)
}
