package logx

import (
	"fmt"
	"io"
	"os"
)

var DebugEnabled bool

// Out is where log lines go. Swappable so tests can capture output.
var Out io.Writer = os.Stdout

// Debugf prints messages only if DebugEnabled is true
func Debugf(format string, args ...interface{}) {
	if DebugEnabled {
		fmt.Fprintf(Out, "[DEBUG] "+format+"\n", args...)
	}
}

// Infof prints messages always (standard output)
func Infof(format string, args ...interface{}) {
	fmt.Fprintf(Out, format+"\n", args...)
}

// Warnf prints messages always, marked so degraded scanner runs stand out
func Warnf(format string, args ...interface{}) {
	fmt.Fprintf(Out, "[WARN] "+format+"\n", args...)
}
