package kernel

import (
	"nanokernel/kernel/cpu"
	"nanokernel/kernel/kfmt"
)

var (
	// cpuHaltFn is mocked by tests and is automatically inlined by the compiler.
	cpuHaltFn = cpu.Halt

	// currentTaskDumpFn is registered by the task manager once it is
	// initialized so that Panic can print the identity of the task that
	// was running when the panic occurred (the PID and name the spec
	// requires on every fatal report). Nil before task-manager init, in
	// which case Panic skips this section.
	currentTaskDumpFn func()

	errRuntimePanic = &Error{Module: "rt", Message: "unknown cause"}
)

// SetCurrentTaskDumper registers a function invoked by Panic to print the
// identity of the task that was running when the fatal condition was
// detected. Called once by the task manager's Init.
func SetCurrentTaskDumper(fn func()) {
	currentTaskDumpFn = fn
}

// Panic outputs the supplied error (if not nil) to the console and halts the
// CPU. Calls to Panic never return. Panic also works as a redirection target
// for calls to panic() (resolved via runtime.gopanic)
//go:redirect-from runtime.gopanic
func Panic(e interface{}) {
	var err *Error

	switch t := e.(type) {
	case *Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	kfmt.Printf("\n-----------------------------------\n")
	if err != nil {
		kfmt.Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	if currentTaskDumpFn != nil {
		currentTaskDumpFn()
	}
	kfmt.Printf("*** kernel panic: system halted ***")
	kfmt.Printf("\n-----------------------------------")

	cpuHaltFn()
}
