package config

import "time"

// Timer is a duration spelled out in settings files.
type Timer struct {
	Hours        uint32 `json:"hours,omitempty"`
	Minutes      uint32 `json:"minutes,omitempty"`
	Seconds      uint32 `json:"seconds,omitempty"`
	Milliseconds uint32 `json:"milliseconds,omitempty"`
}

func (t Timer) Duration() time.Duration {
	return time.Duration(CalculateMillisecondsOfTimer(t)) * time.Millisecond
}

func (t Timer) IsZero() bool {
	return t == Timer{}
}

func CalculateMillisecondsOfTimer(timer Timer) uint64 {
	return uint64(timer.Hours)*60*60*1000 +
		uint64(timer.Minutes)*60*1000 +
		uint64(timer.Seconds)*1000 +
		uint64(timer.Milliseconds)
}

// TimerFromDuration splits d into a Timer, dropping sub-millisecond precision.
func TimerFromDuration(d time.Duration) Timer {
	ms := uint64(d / time.Millisecond)
	return Timer{
		Hours:        uint32(ms / 3_600_000),
		Minutes:      uint32(ms / 60_000 % 60),
		Seconds:      uint32(ms / 1000 % 60),
		Milliseconds: uint32(ms % 1000),
	}
}
