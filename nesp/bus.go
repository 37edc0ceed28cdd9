package nesp

import (
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// Bus represents one byte transport shared by up to 100 daisy-chained pumps,
// addressed 0-99. Every pump constructed through the bus shares a single
// transport lock, so exchanges from different pumps (and their heartbeats)
// never interleave bytes on the line.
type Bus struct {
	port  Port
	mu    sync.Mutex
	pumps *xsync.MapOf[int, *Pump]
}

// NewBus creates a bus over the given transport.
func NewBus(port Port) *Bus {
	return &Bus{
		port:  port,
		pumps: xsync.NewMapOf[int, *Pump](),
	}
}

// Pump constructs a pump on the bus and registers it under its address.
// It fails with ErrDuplicateAddress if a pump with the same address is
// already registered.
func (b *Bus) Pump(opts ...PumpOption) (*Pump, error) {
	cfg, err := newPumpConfig(opts...)
	if err != nil {
		return nil, err
	}
	if _, ok := b.pumps.Load(cfg.address); ok {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateAddress, cfg.address)
	}

	pump, err := newPump(b.port, &b.mu, cfg)
	if err != nil {
		return nil, err
	}

	if _, loaded := b.pumps.LoadOrStore(cfg.address, pump); loaded {
		_ = pump.Close()
		return nil, fmt.Errorf("%w: %d", ErrDuplicateAddress, cfg.address)
	}

	return pump, nil
}

// Get returns the registered pump with the given address.
func (b *Bus) Get(address int) (*Pump, bool) {
	return b.pumps.Load(address)
}

// Addresses returns the addresses of all registered pumps.
func (b *Bus) Addresses() []int {
	addrs := make([]int, 0, b.pumps.Size())
	b.pumps.Range(func(addr int, _ *Pump) bool {
		addrs = append(addrs, addr)
		return true
	})
	return addrs
}

// Close stops the heartbeat of every registered pump. It must be called
// before the underlying transport is released.
func (b *Bus) Close() error {
	b.pumps.Range(func(addr int, p *Pump) bool {
		_ = p.Close()
		b.pumps.Delete(addr)
		return true
	})
	return nil
}
