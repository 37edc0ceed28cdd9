package nesp

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/fluidlab/go-nesp/logger"
)

const (
	// SyringeDiameterMinimum is the minimum syringe diameter in millimeters.
	SyringeDiameterMinimum = 0.1
	// SyringeDiameterMaximum is the maximum syringe diameter in millimeters.
	SyringeDiameterMaximum = 80.0

	// PumpingPollDelay is the delay between status polls while waiting for
	// the pump to leave a running state.
	PumpingPollDelay = 50 * time.Millisecond
)

// Volume and rate limits come from the 4-significant-digit value field of the
// smallest and largest unit buckets the pump accepts.
const (
	pumpingVolumeMinimum = 0.001 / 1_000.0 // 0.001 µl in ml
	pumpingVolumeMaximum = 10_000.0

	pumpingRateMinimum = 0.001 / 60_000.0 // 0.001 µl/h in ml/min
	pumpingRateMaximum = 10_000.0
)

// volumeUnits maps a volume unit symbol to its value in milliliters.
var volumeUnits = map[string]float64{
	"ML": 1,              // milliliters
	"UL": 1.0 / 1_000.0,  // microliters
}

// rateUnits maps a rate unit symbol to its value in milliliters per minute.
var rateUnits = map[string]float64{
	"MM": 1,              // milliliters per minute
	"MH": 1.0 / 60.0,     // milliliters per hour
	"UM": 1.0 / 1_000.0,  // microliters per minute
	"UH": 1.0 / 60_000.0, // microliters per hour
}

// FirmwareVersion is a pump firmware version.
type FirmwareVersion struct {
	Major int
	Minor int
}

// Pump represents one New Era syringe pump on a byte transport.
//
// All typed operations are safe for concurrent use: every exchange with the
// pump, including the ones issued by the background heartbeat, is serialized
// on a single transport lock so no two commands' bytes ever interleave.
type Pump struct {
	xcv     *transceiver
	hb      *heartbeat
	logger  logger.Logger
	address int
	model   int
	fw      FirmwareVersion
}

// NewPump constructs a pump on the given transport.
//
// Construction runs in two phases on the wire. First the configured safe mode
// timeout is applied: the SAF command is transmitted in the checksummed
// envelope while the reply is received already in the target mode, and a
// pending reset alarm from a prior power cycle is swallowed once. Then the
// pump's identity is queried; if WithModel was supplied and disagrees,
// construction fails with ErrModelMismatch.
//
// For several pumps daisy-chained on one transport, construct them through a
// Bus instead so they share the transport lock.
func NewPump(port Port, opts ...PumpOption) (*Pump, error) {
	cfg, err := newPumpConfig(opts...)
	if err != nil {
		return nil, err
	}
	return newPump(port, new(sync.Mutex), cfg)
}

func newPump(port Port, mu *sync.Mutex, cfg *pumpConfig) (*Pump, error) {
	log := cfg.logger.With("address", cfg.address)

	p := &Pump{
		logger:  log,
		address: cfg.address,
	}
	p.xcv = &transceiver{
		port:    port,
		address: cfg.address,
		mu:      mu,
		logger:  log,
		metrics: &PumpMetrics{},
		// The mode-setting command itself is safety-critical, so the very
		// first request always goes out checksummed.
		safeMode: true,
	}
	p.hb = newHeartbeat(p.heartbeatQuery, log)
	p.xcv.hb = p.hb

	if err := p.applySafeModeTimeout(cfg.safeModeTimeout, true); err != nil {
		return nil, fmt.Errorf("nesp: safe mode negotiation: %w", err)
	}
	if err := p.identify(cfg.model); err != nil {
		p.hb.setTimeout(0)
		return nil, err
	}

	log.Info("pump connected", "model", p.model,
		"firmware", fmt.Sprintf("%d.%d", p.fw.Major, p.fw.Minor))

	return p, nil
}

// applySafeModeTimeout issues the SAF command. The reply to a mode switch is
// already framed in the target mode, so the receive framing follows the
// target while the transmit framing follows the current session mode. The new
// mode is committed atomically with the exchange.
func (p *Pump) applySafeModeTimeout(seconds int, ignoreAlarm bool) error {
	target := seconds != 0
	_, err := p.xcv.transceive(exchange{
		cmd:         Command{Code: "SAF", Args: []Arg{Int(seconds)}},
		rxSafe:      &target,
		setMode:     &target,
		ignoreAlarm: ignoreAlarm,
	})
	if err != nil {
		return err
	}

	p.hb.setTimeout(time.Duration(seconds) * time.Second)

	return nil
}

func (p *Pump) identify(expected int) error {
	rep, err := p.xcv.transceive(exchange{cmd: Command{Code: "VER", Result: reFirmware}})
	if err != nil {
		return err
	}

	model, err := strconv.Atoi(rep.match[1])
	if err != nil {
		return fmt.Errorf("%w: model field %q", ErrProtocol, rep.match[1])
	}
	if expected != 0 && model != expected {
		return fmt.Errorf("%w: pump is an NE%d, want NE%d", ErrModelMismatch, model, expected)
	}

	p.model = model
	p.fw.Major, _ = strconv.Atoi(rep.match[3])
	p.fw.Minor, _ = strconv.Atoi(rep.match[4])

	return nil
}

func (p *Pump) heartbeatQuery() error {
	_, err := p.xcv.transceive(exchange{cmd: Command{}})
	if err != nil {
		return err
	}
	p.xcv.metrics.incHeartbeatCount()

	return nil
}

// Address returns the pump address on the daisy chain.
func (p *Pump) Address() int { return p.address }

// Model returns the pump model number, e.g. 1000 for an NE-1000.
func (p *Pump) Model() int { return p.model }

// Firmware returns the pump firmware version.
func (p *Pump) Firmware() FirmwareVersion { return p.fw }

// Metrics returns the pump's atomic counters.
func (p *Pump) Metrics() *PumpMetrics { return p.xcv.metrics }

// Status queries the run state of the pump.
func (p *Pump) Status() (Status, error) {
	rep, err := p.xcv.transceive(exchange{cmd: Command{}})
	if err != nil {
		return 0, err
	}
	return rep.status, nil
}

// Running reports whether the pump is infusing, withdrawing, or purging.
func (p *Pump) Running() (bool, error) {
	status, err := p.Status()
	if err != nil {
		return false, err
	}
	switch status {
	case StatusInfusing, StatusWithdrawing, StatusPurging:
		return true, nil
	default:
		return false, nil
	}
}

// SafeModeTimeout queries the safe mode timeout of the pump in seconds.
func (p *Pump) SafeModeTimeout() (int, error) {
	rep, err := p.xcv.transceive(exchange{cmd: Command{Code: "SAF", Result: reInteger}})
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(rep.match[1])
}

// SetSafeModeTimeout sets the safe mode timeout of the pump in seconds.
// Values: [0, 255]. Zero switches the session to basic mode and stops the
// heartbeat; a nonzero value switches to safe mode and starts (or retunes)
// the heartbeat at half the timeout.
func (p *Pump) SetSafeModeTimeout(seconds int) error {
	if seconds < 0 || seconds > SafeModeTimeoutLimit {
		return fmt.Errorf("%w: safe mode timeout %d out of range [0, %d]",
			ErrArgumentInvalid, seconds, SafeModeTimeoutLimit)
	}
	return p.applySafeModeTimeout(seconds, false)
}

// SyringeDiameter queries the syringe diameter of the pump in millimeters.
func (p *Pump) SyringeDiameter() (float64, error) {
	rep, err := p.xcv.transceive(exchange{cmd: Command{Code: "DIA", Result: reDecimal}})
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(rep.match[1], 64)
}

// SetSyringeDiameter sets the syringe diameter of the pump in millimeters.
// Values: [0.1, 80.0]. This value dictates the pump's rate limits.
//
// The value is truncated to the 4 most significant digits.
func (p *Pump) SetSyringeDiameter(millimeters float64) error {
	if millimeters < SyringeDiameterMinimum || millimeters > SyringeDiameterMaximum {
		return fmt.Errorf("%w: syringe diameter %g out of range [%g, %g]",
			ErrArgumentInvalid, millimeters, SyringeDiameterMinimum, SyringeDiameterMaximum)
	}
	_, err := p.xcv.transceive(exchange{cmd: Command{Code: "DIA", Args: []Arg{Decimal(millimeters)}}})

	return err
}

// Direction queries the pumping direction of the pump.
func (p *Pump) Direction() (PumpingDirection, error) {
	rep, err := p.xcv.transceive(exchange{cmd: Command{Code: "DIR"}})
	if err != nil {
		return 0, err
	}
	dir, ok := directionCodes[rep.result]
	if !ok {
		return 0, fmt.Errorf("%w: unknown direction %q", ErrProtocol, rep.result)
	}
	return dir, nil
}

// SetDirection sets the pumping direction of the pump.
func (p *Pump) SetDirection(direction PumpingDirection) error {
	arg, ok := directionArgs[direction]
	if !ok {
		return fmt.Errorf("%w: pumping direction %d", ErrArgumentInvalid, direction)
	}
	_, err := p.xcv.transceive(exchange{cmd: Command{Code: "DIR", Args: []Arg{String(arg)}}})

	return err
}

// PumpingVolume queries the pumping volume of the pump in milliliters.
func (p *Pump) PumpingVolume() (float64, error) {
	rep, err := p.xcv.transceive(exchange{cmd: Command{Code: "VOL", Result: reValueUnits}})
	if err != nil {
		return 0, err
	}
	return valueInUnits(rep.match[1], rep.match[2], volumeUnits)
}

// SetPumpingVolume sets the pumping volume of the pump in milliliters.
// Valid range: [1e-6, 10000).
//
// The pump stores the volume in milliliter or microliter units chosen by
// magnitude, and accepts at most 4 significant digits per unit choice, so the
// value is truncated accordingly.
func (p *Pump) SetPumpingVolume(milliliters float64) error {
	if milliliters < pumpingVolumeMinimum || milliliters >= pumpingVolumeMaximum {
		return fmt.Errorf("%w: pumping volume %g out of range [%g, %g)",
			ErrArgumentInvalid, milliliters, pumpingVolumeMinimum, pumpingVolumeMaximum)
	}

	value := milliliters
	units := "ML"
	if milliliters < 10.0 {
		value = milliliters * 1_000.0
		units = "UL"
	}

	if _, err := p.xcv.transceive(exchange{cmd: Command{Code: "VOL", Args: []Arg{String(units)}}}); err != nil {
		return err
	}
	_, err := p.xcv.transceive(exchange{cmd: Command{Code: "VOL", Args: []Arg{Decimal(value)}}})

	return err
}

// PumpingRate queries the pumping rate of the pump in milliliters per minute.
func (p *Pump) PumpingRate() (float64, error) {
	rep, err := p.xcv.transceive(exchange{cmd: Command{Code: "RAT", Result: reValueUnits}})
	if err != nil {
		return 0, err
	}
	return valueInUnits(rep.match[1], rep.match[2], rateUnits)
}

// SetPumpingRate sets the pumping rate of the pump in milliliters per minute.
// Valid range: [1.6667e-8, 10000). The achievable limits are dictated by the
// syringe diameter.
//
// The pump accepts at most 4 significant digits per unit choice, so the rate
// is bucketed by magnitude into one of four unit/scale pairs and the value
// truncated accordingly.
func (p *Pump) SetPumpingRate(millilitersPerMinute float64) error {
	if millilitersPerMinute < pumpingRateMinimum || millilitersPerMinute >= pumpingRateMaximum {
		return fmt.Errorf("%w: pumping rate %g out of range [%g, %g)",
			ErrArgumentInvalid, millilitersPerMinute, pumpingRateMinimum, pumpingRateMaximum)
	}

	value := millilitersPerMinute
	var units string
	switch {
	case millilitersPerMinute >= 10_000.0/60.0:
		units = "MM"
	case millilitersPerMinute >= 10.0:
		value *= 60.0
		units = "MH"
	case millilitersPerMinute >= 10_000.0/60_000.0:
		value *= 1_000.0
		units = "UM"
	default:
		value *= 60_000.0
		units = "UH"
	}

	_, err := p.xcv.transceive(exchange{cmd: Command{Code: "RAT", Args: []Arg{Decimal(value), String(units)}}})

	return err
}

// VolumeInfused queries the cumulative infused volume in milliliters.
func (p *Pump) VolumeInfused() (float64, error) {
	return p.dispensation(false)
}

// VolumeWithdrawn queries the cumulative withdrawn volume in milliliters.
func (p *Pump) VolumeWithdrawn() (float64, error) {
	return p.dispensation(true)
}

func (p *Pump) dispensation(withdrawn bool) (float64, error) {
	rep, err := p.xcv.transceive(exchange{cmd: Command{Code: "DIS", Result: reDispensation}})
	if err != nil {
		return 0, err
	}
	field := rep.match[1]
	if withdrawn {
		field = rep.match[2]
	}
	return valueInUnits(field, rep.match[3], volumeUnits)
}

// ClearVolumeInfused resets the cumulative infused volume to zero.
func (p *Pump) ClearVolumeInfused() error {
	_, err := p.xcv.transceive(exchange{cmd: Command{Code: "CLD", Args: []Arg{String("INF")}}})
	return err
}

// ClearVolumeWithdrawn resets the cumulative withdrawn volume to zero.
func (p *Pump) ClearVolumeWithdrawn() error {
	_, err := p.xcv.transceive(exchange{cmd: Command{Code: "CLD", Args: []Arg{String("WDR")}}})
	return err
}

// Run runs the pump considering the direction, volume, and rate set.
// When wait is true, Run blocks until the pump leaves a running state.
func (p *Pump) Run(wait bool) error {
	if _, err := p.xcv.transceive(exchange{cmd: Command{Code: "RUN"}}); err != nil {
		return err
	}
	if wait {
		return p.WaitWhileRunning()
	}
	return nil
}

// RunPurge runs the pump in the direction set at maximum rate.
// Running continues until stopped.
func (p *Pump) RunPurge() error {
	_, err := p.xcv.transceive(exchange{cmd: Command{Code: "PUR"}})
	return err
}

// Stop stops the pump. When wait is true, Stop blocks until the pump has left
// its running state.
func (p *Pump) Stop(wait bool) error {
	if _, err := p.xcv.transceive(exchange{cmd: Command{Code: "STP"}}); err != nil {
		return err
	}
	if wait {
		return p.WaitWhileRunning()
	}
	return nil
}

// WaitWhileRunning polls the pump status every 50 ms until the pump is no
// longer running. There is no internal deadline; the caller bears
// responsibility for bounding the total wait time.
func (p *Pump) WaitWhileRunning() error {
	for {
		running, err := p.Running()
		if err != nil {
			return err
		}
		if !running {
			return nil
		}
		time.Sleep(PumpingPollDelay)
	}
}

// Close stops the background heartbeat, waiting for a query in flight to
// finish. It must be called before the transport is released. Close never
// touches the transport itself; the pump may be reused after a later
// SetSafeModeTimeout.
func (p *Pump) Close() error {
	p.hb.setTimeout(0)
	return nil
}

func valueInUnits(field, units string, table map[string]float64) (float64, error) {
	factor, ok := table[units]
	if !ok {
		return 0, fmt.Errorf("%w: unknown units %q", ErrProtocol, units)
	}
	value, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: value field %q", ErrProtocol, field)
	}
	return value * factor, nil
}
