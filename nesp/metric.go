package nesp

import "sync/atomic"

// PumpMetrics contains atomic metrics for a pump.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type PumpMetrics struct {
	// CommandSendCount indicates the number of requests transmitted,
	// including heartbeat queries and alarm-swallow retransmissions.
	CommandSendCount atomic.Uint64
	// ReplyRecvCount indicates the number of replies successfully parsed.
	ReplyRecvCount atomic.Uint64
	// AlarmRetryCount indicates the number of one-shot stale-alarm
	// retransmissions.
	AlarmRetryCount atomic.Uint64
	// HeartbeatCount indicates the number of heartbeat status queries issued.
	HeartbeatCount atomic.Uint64
	// ReplyChecksumErrCount indicates the number of replies dropped for a
	// checksum mismatch.
	ReplyChecksumErrCount atomic.Uint64
}

func (m *PumpMetrics) incCommandSendCount() {
	m.CommandSendCount.Add(1)
}

func (m *PumpMetrics) incReplyRecvCount() {
	m.ReplyRecvCount.Add(1)
}

func (m *PumpMetrics) incAlarmRetryCount() {
	m.AlarmRetryCount.Add(1)
}

func (m *PumpMetrics) incHeartbeatCount() {
	m.HeartbeatCount.Add(1)
}

func (m *PumpMetrics) incReplyChecksumErrCount() {
	m.ReplyChecksumErrCount.Add(1)
}
