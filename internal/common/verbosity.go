package common

import (
	"github.com/rs/zerolog"
)

// VerbosityLevel represents the level of verbosity for output
type VerbosityLevel int

const (
	// VerbosityQuiet produces minimal output, only showing warnings and errors
	VerbosityQuiet VerbosityLevel = iota
	// VerbosityNormal is the default level, showing standard command output
	VerbosityNormal
	// VerbosityVerbose shows more detailed information about operations
	VerbosityVerbose
	// VerbosityDebug shows the most detailed information, including request tracing
	VerbosityDebug
)

// String returns a string representation of the verbosity level
func (v VerbosityLevel) String() string {
	switch v {
	case VerbosityQuiet:
		return "quiet"
	case VerbosityNormal:
		return "normal"
	case VerbosityVerbose:
		return "verbose"
	case VerbosityDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ParseVerbosityLevel converts a string to a VerbosityLevel
func ParseVerbosityLevel(s string) VerbosityLevel {
	switch s {
	case "quiet":
		return VerbosityQuiet
	case "verbose":
		return VerbosityVerbose
	case "debug":
		return VerbosityDebug
	default:
		return VerbosityNormal
	}
}

// ZerologLevel maps the verbosity level onto a log level
func (v VerbosityLevel) ZerologLevel() zerolog.Level {
	switch v {
	case VerbosityQuiet:
		return zerolog.WarnLevel
	case VerbosityVerbose:
		return zerolog.DebugLevel
	case VerbosityDebug:
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}
