package nesp

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSimBus wires several devices onto one shared port, like pumps
// daisy-chained on one RS-232 line. Each device only answers requests
// carrying its own address.
func newSimBus(addresses ...int) (*simPort, []*simDevice) {
	port := newSimPort()

	devs := make([]*simDevice, len(addresses))
	for i, addr := range addresses {
		devs[i] = newSimDevice(port, addr)
	}
	port.handler = func(text string) string {
		for _, dev := range devs {
			if reply := dev.reply(text); reply != "" {
				return reply
			}
		}
		return ""
	}

	return port, devs
}

func TestBus_MultiplePumps(t *testing.T) {
	port, devs := newSimBus(0, 1)
	devs[1].model = "NE500X2V1.05"
	devs[1].diameter = "11.99"

	bus := NewBus(port)
	defer bus.Close()

	first, err := bus.Pump()
	require.NoError(t, err)
	second, err := bus.Pump(WithAddress(1))
	require.NoError(t, err)

	assert.Equal(t, 1000, first.Model())
	assert.Equal(t, 500, second.Model())

	d0, err := first.SyringeDiameter()
	require.NoError(t, err)
	d1, err := second.SyringeDiameter()
	require.NoError(t, err)
	assert.Equal(t, 26.59, d0)
	assert.Equal(t, 11.99, d1)
}

func TestBus_DuplicateAddress(t *testing.T) {
	port, _ := newSimBus(0)

	bus := NewBus(port)
	defer bus.Close()

	_, err := bus.Pump()
	require.NoError(t, err)

	_, err = bus.Pump(WithAddress(0))
	assert.ErrorIs(t, err, ErrDuplicateAddress)
}

func TestBus_ConstructionFailureLeavesNoEntry(t *testing.T) {
	port, _ := newSimBus(0)

	bus := NewBus(port)
	defer bus.Close()

	_, err := bus.Pump(WithModel(500))
	require.ErrorIs(t, err, ErrModelMismatch)

	_, ok := bus.Get(0)
	assert.False(t, ok)

	// The address is free for another attempt.
	_, err = bus.Pump()
	assert.NoError(t, err)
}

func TestBus_GetAndAddresses(t *testing.T) {
	port, _ := newSimBus(0, 5, 42)

	bus := NewBus(port)
	defer bus.Close()

	for _, addr := range []int{0, 5, 42} {
		_, err := bus.Pump(WithAddress(addr))
		require.NoError(t, err)
	}

	pump, ok := bus.Get(5)
	require.True(t, ok)
	assert.Equal(t, 5, pump.Address())

	_, ok = bus.Get(7)
	assert.False(t, ok)

	assert.ElementsMatch(t, []int{0, 5, 42}, bus.Addresses())
}

func TestBus_Close(t *testing.T) {
	port, _ := newSimBus(0, 1)

	bus := NewBus(port)
	for _, addr := range []int{0, 1} {
		_, err := bus.Pump(WithAddress(addr))
		require.NoError(t, err)
	}

	require.NoError(t, bus.Close())
	assert.Empty(t, bus.Addresses())
}

func TestBus_ConcurrentPumpsShareTheLine(t *testing.T) {
	port, _ := newSimBus(0, 1)

	bus := NewBus(port)
	defer bus.Close()

	first, err := bus.Pump()
	require.NoError(t, err)
	second, err := bus.Pump(WithAddress(1))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, pump := range []*Pump{first, second} {
		wg.Add(1)
		go func(p *Pump) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_, err := p.Status()
				assert.NoError(t, err)
			}
		}(pump)
	}
	wg.Wait()

	assert.False(t, port.wasInterleaved(), "pumps on one bus must never interleave exchanges")
}
