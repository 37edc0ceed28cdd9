package nesp

import (
	"fmt"

	"github.com/fluidlab/go-nesp/logger"
)

const (
	// DefaultAddress is the factory-set pump address.
	DefaultAddress = 0
	// AddressLimit is the highest pump address on a daisy chain.
	AddressLimit = 99

	// DefaultSafeModeTimeout disables safe mode.
	DefaultSafeModeTimeout = 0
	// SafeModeTimeoutLimit is the highest safe mode timeout in seconds.
	SafeModeTimeoutLimit = 255
)

// pumpConfig holds all configuration for a Pump.
type pumpConfig struct {
	// address is the pump address on the daisy chain, 0-99.
	address int

	// safeModeTimeout is the device-side inactivity timeout in seconds.
	// Zero selects basic mode; nonzero selects safe (checksummed) mode with
	// a heartbeat at half this value.
	safeModeTimeout int

	// model is the expected pump model (1000 for an NE-1000). Zero accepts
	// any model.
	model int

	logger logger.Logger
}

func newPumpConfig(opts ...PumpOption) (*pumpConfig, error) {
	cfg := &pumpConfig{
		address:         DefaultAddress,
		safeModeTimeout: DefaultSafeModeTimeout,
		logger:          logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// PumpOption is a functional option for configuring a Pump.
type PumpOption interface {
	apply(*pumpConfig) error
}

type pumpOptFunc func(*pumpConfig) error

func (f pumpOptFunc) apply(cfg *pumpConfig) error { return f(cfg) }

// WithAddress sets the pump address. Must be in [0, 99].
func WithAddress(address int) PumpOption {
	return pumpOptFunc(func(cfg *pumpConfig) error {
		if address < 0 || address > AddressLimit {
			return fmt.Errorf("%w: address %d out of range [0, %d]", ErrArgumentInvalid, address, AddressLimit)
		}
		cfg.address = address

		return nil
	})
}

// WithSafeModeTimeout sets the safe mode timeout in seconds. Must be in
// [0, 255]. Zero selects basic mode; a nonzero value selects safe
// (checksummed) mode and starts a keepalive heartbeat at half the timeout.
func WithSafeModeTimeout(seconds int) PumpOption {
	return pumpOptFunc(func(cfg *pumpConfig) error {
		if seconds < 0 || seconds > SafeModeTimeoutLimit {
			return fmt.Errorf("%w: safe mode timeout %d out of range [0, %d]", ErrArgumentInvalid, seconds, SafeModeTimeoutLimit)
		}
		cfg.safeModeTimeout = seconds

		return nil
	})
}

// WithModel sets the expected pump model, e.g. 1000 for an NE-1000.
// Construction fails with ErrModelMismatch if the pump identifies as a
// different model. Without this option any model is accepted.
func WithModel(model int) PumpOption {
	return pumpOptFunc(func(cfg *pumpConfig) error {
		if model <= 0 {
			return fmt.Errorf("%w: model %d must be positive", ErrArgumentInvalid, model)
		}
		cfg.model = model

		return nil
	})
}

// WithLogger sets the logger for the pump.
func WithLogger(l logger.Logger) PumpOption {
	return pumpOptFunc(func(cfg *pumpConfig) error {
		if l == nil {
			return fmt.Errorf("%w: logger must not be nil", ErrArgumentInvalid)
		}
		cfg.logger = l

		return nil
	})
}
