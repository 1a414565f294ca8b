package task

import "strings"

// Mode selects the scheduler's ring topology, per spec's low-latency vs
// interactive modes.
type Mode uint8

const (
	// Interactive runs a multilevel feedback queue with Rings rings.
	Interactive Mode = iota
	// LowLatency pins the scheduler to a single ring (R = 1), i.e. plain
	// round-robin across every runnable task.
	LowLatency
)

// Config holds the boot-time scheduler parameters: ring count, base
// quantum, preemption-boost interval and timer frequency. kmain.Kmain
// derives one from the boot-info command line through ParseConfig.
type Config struct {
	Mode Mode

	// Rings is R, the number of MLFQ priority rings. Forced to 1 when
	// Mode == LowLatency regardless of what was requested.
	Rings uint8

	// BaseQuantum is the ring-0 quantum, in ticks. Ring q's quantum is
	// BaseQuantum << q (spec: "quantum = base * 2^q"); Quantum caps the
	// shift at 31.
	BaseQuantum uint64

	// TickHz is the PIT frequency driving the scheduler's tick counter.
	TickHz uint32

	// BoostIntervalTicks is how often every RUNNABLE task is restored to
	// ring 0 to prevent starvation.
	BoostIntervalTicks uint64
}

// DefaultConfig is used for any command-line key this parse leaves unset.
var DefaultConfig = Config{
	Mode:               Interactive,
	Rings:              4,
	BaseQuantum:        5,
	TickHz:             50,
	BoostIntervalTicks: 50, // 1s of wall time at the default 50Hz tick rate
}

// ParseConfig derives a Config from the kernel command line
// (bootinfo.Info.CommandLine), recognizing sched.mode, sched.rings,
// sched.quantum and sched.hz tokens and falling back to DefaultConfig for
// anything absent or malformed, the way gopher-os's multiboot command-line
// accessor tokenizes key=value pairs.
func ParseConfig(cmdline string) Config {
	cfg := DefaultConfig
	for _, tok := range strings.Fields(cmdline) {
		key, value, hasValue := strings.Cut(tok, "=")
		if !hasValue {
			continue
		}
		switch key {
		case "sched.mode":
			if value == "lowlatency" {
				cfg.Mode = LowLatency
			}
		case "sched.rings":
			if n, ok := parseUint(value); ok && n > 0 {
				cfg.Rings = uint8(n)
			}
		case "sched.quantum":
			if n, ok := parseUint(value); ok && n > 0 {
				cfg.BaseQuantum = n
			}
		case "sched.hz":
			if n, ok := parseUint(value); ok && n > 0 {
				cfg.TickHz = uint32(n)
				cfg.BoostIntervalTicks = uint64(n)
			}
		}
	}

	if cfg.Mode == LowLatency {
		cfg.Rings = 1
	}
	return cfg
}

// parseUint converts a decimal string to a uint64 without pulling in
// strconv's error-wrapping machinery; the kernel command line is not
// attacker-controlled input worth detailed diagnostics for, just digits
// or a fallback to the default.
func parseUint(s string) (uint64, bool) {
	if s == "" {
		return 0, false
	}
	var n uint64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + uint64(c-'0')
	}
	return n, true
}

// Quantum returns the maximum uninterrupted tick count a task in the given
// ring may run for before it is eligible for preemption.
func (c Config) Quantum(ring uint8) uint64 {
	if ring >= 32 {
		ring = 31
	}
	return c.BaseQuantum << ring
}
