package irq

import "testing"

func TestHasErrorCode(t *testing.T) {
	withCode := []Vector{DoubleFault, InvalidTSS, SegmentNotPresent, StackSegmentFault, GPFException, PageFaultException, AlignmentCheck}
	for _, v := range withCode {
		if !hasErrorCode(v) {
			t.Errorf("expected vector %d to carry a hardware error code", v)
		}
	}

	withoutCode := []Vector{DivideByZero, Breakpoint, TimerVector, KeyboardVector, MouseVector, SyscallVector}
	for _, v := range withoutCode {
		if hasErrorCode(v) {
			t.Errorf("expected vector %d to carry no hardware error code", v)
		}
	}
}
