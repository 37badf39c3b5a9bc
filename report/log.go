package report

import (
	"fmt"
	"strings"

	"github.com/cs217/hlsweep/util"
)

// Log accumulates the raw output of every run of a sweep followed by the
// rendered summary. It is written once, at the end of the sweep.
type Log struct {
	b strings.Builder
}

// Printf appends formatted text.
func (l *Log) Printf(format string, a ...interface{}) {
	fmt.Fprintf(&l.b, format, a...)
}

// Append appends text verbatim.
func (l *Log) Append(text string) {
	l.b.WriteString(text)
}

// Section appends text under a `--- title ---` marker line.
func (l *Log) Section(title, text string) {
	fmt.Fprintf(&l.b, "\n--- %s ---\n", title)
	l.b.WriteString(text)
}

func (l *Log) String() string {
	return l.b.String()
}

// WriteFile writes the log to file, creating its directory and replacing any
// previous log.
func (l *Log) WriteFile(file string) error {
	return util.WriteFile(file, []byte(l.b.String()))
}
