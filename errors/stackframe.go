package errors

import (
	"fmt"
	"runtime"
	"strings"
)

// StackFrame is one line of a captured call stack.
type StackFrame struct {
	File           string
	LineNumber     int
	Name           string // Function name without the package path.
	Package        string
	ProgramCounter uintptr
}

// NewStackFrame populates a stack frame from a program counter.
func NewStackFrame(pc uintptr) StackFrame {
	frame := StackFrame{ProgramCounter: pc}
	fn := runtime.FuncForPC(pc)
	if pc == 0 || fn == nil {
		return frame
	}
	frame.Package, frame.Name = packageAndName(fn.Name())

	// pc-1 because the program counters are return addresses and we want the
	// line of the call.
	frame.File, frame.LineNumber = fn.FileLine(pc - 1)
	return frame
}

// String formats the frame as "file:line func".
func (frame StackFrame) String() string {
	return fmt.Sprintf("%s:%d %s", frame.File, frame.LineNumber, frame.Name)
}

// packageAndName splits "github.com/dpup/gatehouse/session.(*Manager).Load"
// into "github.com/dpup/gatehouse/session" and "(*Manager).Load".
func packageAndName(name string) (string, string) {
	pkg := ""
	if slash := strings.LastIndex(name, "/"); slash >= 0 {
		pkg = name[:slash+1]
		name = name[slash+1:]
	}
	if period := strings.Index(name, "."); period >= 0 {
		pkg += name[:period]
		name = name[period+1:]
	}
	return pkg, strings.ReplaceAll(name, "·", ".")
}
