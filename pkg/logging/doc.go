// Package logging provides leveled, categorized structured logging with
// pluggable sinks. Loggers are created explicitly and passed to the
// components that use them; there is no package-level registry.
package logging
