package task

// switchContext saves the callee-saved registers and the return address
// of its own call site onto the outgoing stack, records the resulting
// stack pointer at *oldESP, switches to newESP and returns by popping the
// incoming stack's saved registers and return address instead. This is
// the mechanism behind spec's "saved instruction pointer is the return
// address produced by the switch routine itself": nothing stores EIP
// directly, it falls out of whichever stack ESP now points at. Declared
// without a body; implemented in switch_386.s.
func switchContext(oldESP *uintptr, newESP uintptr)
