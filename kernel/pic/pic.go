// Package pic drives the two cascaded 8259 programmable interrupt
// controllers, remapping the 16 legacy hardware IRQ lines onto interrupt
// vectors 0x20-0x2F so that they no longer collide with the CPU's
// reserved 0x00-0x1F exception range.
package pic

import "nanokernel/kernel/cpu"

const (
	masterCommand = 0x20
	masterData    = 0x21
	slaveCommand  = 0xA0
	slaveData     = 0xA1

	icw1Init    = 0x10
	icw1ICW4    = 0x01
	icw4_8086   = 0x01
	cmdEOI      = 0x20

	// MasterOffset and SlaveOffset are the interrupt vectors IRQ0 and
	// IRQ8 are remapped to.
	MasterOffset = 0x20
	SlaveOffset  = 0x28
)

var out8Fn = cpu.Out8
var in8Fn = cpu.In8

// Remap reprograms both PICs so that IRQ0-7 map to vectors
// MasterOffset..MasterOffset+7 and IRQ8-15 map to SlaveOffset..SlaveOffset+7,
// and restores each PIC's interrupt mask to what it was before the remap.
func Remap() {
	savedMasterMask := in8Fn(masterData)
	savedSlaveMask := in8Fn(slaveData)

	out8Fn(masterCommand, icw1Init|icw1ICW4)
	out8Fn(slaveCommand, icw1Init|icw1ICW4)

	out8Fn(masterData, MasterOffset)
	out8Fn(slaveData, SlaveOffset)

	out8Fn(masterData, 0x04) // tell master PIC there's a slave at IRQ2
	out8Fn(slaveData, 0x02)  // tell slave PIC its cascade identity

	out8Fn(masterData, icw4_8086)
	out8Fn(slaveData, icw4_8086)

	out8Fn(masterData, savedMasterMask)
	out8Fn(slaveData, savedSlaveMask)
}

// SendEOI acknowledges an interrupt on the given IRQ line so the PIC will
// deliver further interrupts on it (and, for a slave-PIC line, on the
// master's cascade line too).
func SendEOI(irqLine uint8) {
	if irqLine >= 8 {
		out8Fn(slaveCommand, cmdEOI)
	}
	out8Fn(masterCommand, cmdEOI)
}

// SetMasked masks or unmasks a single IRQ line.
func SetMasked(irqLine uint8, masked bool) {
	port := masterData
	line := irqLine
	if irqLine >= 8 {
		port = slaveData
		line -= 8
	}

	current := in8Fn(uint16(port))
	if masked {
		current |= 1 << line
	} else {
		current &^= 1 << line
	}
	out8Fn(uint16(port), current)
}
