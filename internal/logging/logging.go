// Package logging wraps the standard logger with the bracketed per-component
// tag style used throughout the daemon (e.g. "[engine]", "[ws]").
package logging

import (
	"log"
	"os"
)

// Logger is a tagged wrapper around the standard library logger.
type Logger struct {
	tag string
	std *log.Logger
}

// New returns a Logger that prefixes every line with "[component] ".
func New(component string) *Logger {
	return &Logger{
		tag: component,
		std: log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (l *Logger) Printf(format string, args ...interface{}) {
	l.std.Printf("[%s] "+format, append([]interface{}{l.tag}, args...)...)
}

func (l *Logger) Println(args ...interface{}) {
	l.std.Println(append([]interface{}{"[" + l.tag + "]"}, args...)...)
}
