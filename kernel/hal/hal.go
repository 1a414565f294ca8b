// Package hal wires the one physical output device this kernel drives
// directly, the text-mode EGA framebuffer the bootloader already set up,
// to the diagnostic sink every other package's kfmt.Printf writes through.
// It is not an interactive terminal: nothing here reads input or
// implements a shell.
package hal

import (
	"nanokernel/kernel/driver/tty"
	"nanokernel/kernel/driver/video/console"
	"nanokernel/kernel/multiboot"
)

var (
	egaConsole = &console.Ega{}

	// ActiveTerminal is the io.Writer kmain registers with kfmt once it
	// is attached.
	ActiveTerminal = &tty.Vt{}
)

// InitTerminal attaches ActiveTerminal to the framebuffer the bootloader
// reported. A no-op if no framebuffer tag is present (e.g. running under a
// serial-only test harness).
func InitTerminal() bool {
	fbInfo := multiboot.GetFramebufferInfo()
	if fbInfo == nil {
		return false
	}

	egaConsole.Init(uint16(fbInfo.Width), uint16(fbInfo.Height), uintptr(fbInfo.PhysAddr))
	ActiveTerminal.AttachTo(egaConsole)
	return true
}
