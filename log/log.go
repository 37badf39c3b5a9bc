package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"
)

// Verbose controls whether debug messages are being printed.
var Verbose bool

// IndentationLevel controls the amount of indentation of log messages.
var IndentationLevel = 0

// Spinner is shown on the terminal while an external tool is running.
var Spinner = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))

var errorOccured = false

const (
	indentField  = "indent"
	successField = "success"
)

var logger = &logrus.Logger{
	Out:       os.Stderr,
	Formatter: &formatter{},
	Hooks:     make(logrus.LevelHooks),
	Level:     logrus.DebugLevel,
}

// formatter renders entries the way the tool always printed them: an
// indentation prefix, a coloured level tag and the message verbatim.
type formatter struct{}

func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	if indent, ok := entry.Data[indentField].(int); ok {
		b.WriteString(strings.Repeat("  ", indent))
	}
	switch {
	case entry.Data[successField] == true:
		b.WriteString("\033[32mSuccess: \033[0m")
	case entry.Level == logrus.DebugLevel:
		b.WriteString("\033[36mDebug: \033[0m")
	case entry.Level == logrus.WarnLevel:
		b.WriteString("\033[33mWarning: \033[0m")
	case entry.Level == logrus.ErrorLevel:
		b.WriteString("\033[31mError: \033[0m")
	}
	b.WriteString(entry.Message)
	return b.Bytes(), nil
}

func entry() *logrus.Entry {
	return logger.WithField(indentField, IndentationLevel)
}

// SetOutput redirects all log messages to w.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// ErrorOccured reports whether any errors have occured.
func ErrorOccured() bool {
	return errorOccured
}

// Log prints an indented and formatted message to os.Stderr.
func Log(format string, a ...interface{}) {
	entry().Infof(format, a...)
}

// Debug prints an indented and formatted debug message if verbose output is selected.
func Debug(format string, a ...interface{}) {
	if Verbose {
		entry().Debugf(format, a...)
	}
}

// Success prints an indented and formatted success message.
func Success(format string, a ...interface{}) {
	entry().WithField(successField, true).Infof(format, a...)
}

// Warning prints an indented and formatted warning.
func Warning(format string, a ...interface{}) {
	entry().Warnf(format, a...)
}

// Error prints an indented and formatted error message.
func Error(format string, a ...interface{}) {
	errorOccured = true
	entry().Errorf(format, a...)
}

// Fatal prints an indented and formatted error message and terminates the program.
// Handlers registered with atexit (e.g. restoring template files) run before exiting.
func Fatal(format string, a ...interface{}) {
	Error(format, a...)
	fmt.Fprintf(logger.Out, "\033[31mA fatal error occured. Exiting...\033[0m\n")
	atexit.Exit(1)
}
