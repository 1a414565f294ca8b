// Package pit drives channel 0 of the 8253/8254 programmable interval
// timer, programming it to fire at a configurable frequency and routing
// its interrupt (IRQ0, vector 0x20) to the task scheduler's tick handler.
package pit

import (
	"nanokernel/kernel/cpu"
	"nanokernel/kernel/irq"
	"nanokernel/kernel/pic"
)

const (
	channel0Data = 0x40
	commandPort  = 0x43

	// baseFrequency is the PIT's fixed input clock, in Hz.
	baseFrequency = 1193182

	// DefaultHz is the scheduler tick rate used unless a caller requests
	// a different one.
	DefaultHz = 50

	modeRateGenerator = 0x34 // channel 0, lobyte/hibyte access, mode 2
)

var (
	out8Fn    = cpu.Out8
	sendEOIFn = pic.SendEOI

	// tickFn is invoked on every timer interrupt once the system is past
	// early boot; the task manager installs its scheduler tick here.
	tickFn func()
)

// Init programs the PIT to fire at hz interrupts per second and installs
// the IRQ0 handler that drives it. It must run after irq.Init and
// pic.Remap.
func Init(hz uint32) {
	divisor := uint16(baseFrequency / hz)

	out8Fn(commandPort, modeRateGenerator)
	out8Fn(channel0Data, uint8(divisor))
	out8Fn(channel0Data, uint8(divisor>>8))

	irq.RegisterHandler(irq.TimerVector, handleTick)
}

// SetTickHandler registers the function invoked on every timer interrupt.
// Installed exactly once, by the task manager during its own Init.
func SetTickHandler(fn func()) {
	tickFn = fn
}

func handleTick(_ *irq.Frame, _ *irq.Regs) {
	if tickFn != nil {
		tickFn()
	}
	sendEOIFn(0)
}
