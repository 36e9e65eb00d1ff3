package tcp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rn2903-service/internal/model"
)

func TestScanReportsReachableEndpoints(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	// Grab a free port and release it so nothing is listening there
	closed, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedAddr := closed.Addr().String()
	closed.Close()

	s := NewScanner(nil, &Config{
		Endpoints:   []string{"tcp://" + ln.Addr().String(), closedAddr},
		ConnTimeout: 500 * time.Millisecond,
	})
	require.True(t, s.IsAvailable())

	devices, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "tcp://"+ln.Addr().String(), devices[0].Address)
	assert.Equal(t, model.ConnectionTypeTCP, devices[0].ConnectionType)
}

func TestUnavailableWithoutEndpoints(t *testing.T) {
	assert.False(t, NewScanner(nil, nil).IsAvailable())
}
