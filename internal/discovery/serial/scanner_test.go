package serial

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"

	"rn2903-service/internal/model"
)

func fixedPorts(ports ...*enumerator.PortDetails) PortLister {
	return func() ([]*enumerator.PortDetails, error) { return ports, nil }
}

func TestScanRanksMicrochipFirst(t *testing.T) {
	s := NewScannerWithLister(nil, fixedPorts(
		&enumerator.PortDetails{Name: "/dev/ttyS0"},
		&enumerator.PortDetails{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6015"},
		&enumerator.PortDetails{Name: "/dev/ttyACM0", IsUSB: true, VID: "04d8", PID: "000a", SerialNumber: "A1", Product: "RN2903"},
	))

	devices, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)

	byAddr := map[string]float64{}
	for _, d := range devices {
		assert.Equal(t, model.ConnectionTypeSerial, d.ConnectionType)
		byAddr[d.Address] = d.Confidence
	}
	assert.Greater(t, byAddr["/dev/ttyACM0"], byAddr["/dev/ttyUSB0"])
	assert.Equal(t, "04D8", devices[1].VendorID)
	assert.Equal(t, "RN2903", devices[1].Description)
}

func TestScanIncludesUARTWhenAsked(t *testing.T) {
	s := NewScannerWithLister(nil, fixedPorts(&enumerator.PortDetails{Name: "/dev/ttyS0"}))
	s.IncludeNonUSB = true

	devices, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "/dev/ttyS0", devices[0].Description)
}

func TestScanListerError(t *testing.T) {
	s := NewScannerWithLister(nil, func() ([]*enumerator.PortDetails, error) {
		return nil, errors.New("no sysfs")
	})
	_, err := s.Scan(context.Background())
	assert.ErrorContains(t, err, "no sysfs")
}
