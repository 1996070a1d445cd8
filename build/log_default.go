//go:build !nolog && !stdlog
// +build !nolog,!stdlog

package build

// LoggingType is a log type that writes to both stdout and the log rotator.
const LoggingType = LogTypeDefault
