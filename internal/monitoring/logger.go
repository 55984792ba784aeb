package monitoring

import "log"

// Logf receives progress lines from RunStats.LogProgress.
var Logf = log.Printf

// SetLogger redirects progress output. nil discards it.
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		f = func(string, ...any) {}
	}
	Logf = f
}
