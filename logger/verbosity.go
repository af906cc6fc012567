package logger

import "go.uber.org/zap/zapcore"

// Verbosity level constants for CLI flag counts.
//
// These levels control WHAT categories of output are shown, not just log severity.
// See output.go for the category system.
//
//	if logger.ShouldOutput(verbosity, logger.OutputTree) {
//	    fmt.Println(tree)
//	}
const (
	VerbosityUser  = 0 // No flags: results and errors only
	VerbosityInfo  = 1 // -v: + startup, config source, conjunction summaries
	VerbosityDebug = 2 // -vv: + unflattened tree, timing, token layout
	VerbosityTrace = 3 // -vvv: + per-request server logs
	VerbosityAll   = 4 // -vvvv: + full request/response bodies
)

// VerbosityToLevel maps verbosity flags (-v, -vv, etc.) to zap log levels.
// Anything from -vv upwards is DebugLevel; the finer levels only gate output categories.
func VerbosityToLevel(verbosity int) zapcore.Level {
	switch {
	case verbosity <= VerbosityUser:
		return zapcore.WarnLevel
	case verbosity == VerbosityInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// LevelName returns a human-readable name for verbosity level
func LevelName(verbosity int) string {
	switch verbosity {
	case VerbosityUser:
		return "User"
	case VerbosityInfo:
		return "Info (-v)"
	case VerbosityDebug:
		return "Debug (-vv)"
	case VerbosityTrace:
		return "Trace (-vvv)"
	case VerbosityAll:
		return "All (-vvvv)"
	}
	if verbosity > VerbosityAll {
		return "All (-vvvv+)"
	}
	return "Unknown"
}
