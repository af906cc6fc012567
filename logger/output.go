package logger

import "sort"

// Output controls what categories of information are shown at each verbosity level.
//
// Unlike log levels (which filter by severity), output categories control
// WHAT types of information are displayed regardless of severity.
//
//	0 (default) - Flattened conjunction, errors with hints
//	1 (-v)      - + Config source, server startup, summaries
//	2 (-vv)     - + Unflattened tree, token layout, timing
//	3 (-vvv)    - + Per-request server logs
//	4 (-vvvv)   - + Full request/response bodies

// OutputCategory defines a category of output that can be enabled/disabled
type OutputCategory int

const (
	// Level 0 (default) - Always shown
	OutputResults OutputCategory = iota // Flattened conjunction, legacy blend
	OutputErrors                        // Parse errors with hints

	// Level 1 (-v) - Informational
	OutputStartup // Server banner, config file in use
	OutputSummary // Part and fragment counts

	// Level 2 (-vv) - Detailed
	OutputTree   // Unflattened tree before flattening
	OutputTokens // Token layout and discarded tokens
	OutputTiming // Parse timing

	// Level 3 (-vvv) - Debug
	OutputRequests // One line per server request

	// Level 4 (-vvvv) - Full dump
	OutputBodies // Full HTTP/WebSocket request and response bodies
)

// categoryLevels maps each output category to its minimum verbosity level
var categoryLevels = map[OutputCategory]int{
	OutputResults:  VerbosityUser,
	OutputErrors:   VerbosityUser,
	OutputStartup:  VerbosityInfo,
	OutputSummary:  VerbosityInfo,
	OutputTree:     VerbosityDebug,
	OutputTokens:   VerbosityDebug,
	OutputTiming:   VerbosityDebug,
	OutputRequests: VerbosityTrace,
	OutputBodies:   VerbosityAll,
}

// ShouldOutput returns true if the given category should be shown at the given verbosity
func ShouldOutput(verbosity int, category OutputCategory) bool {
	minLevel, ok := categoryLevels[category]
	if !ok {
		// Unknown category, default to highest verbosity required
		return verbosity >= VerbosityAll
	}
	return verbosity >= minLevel
}

var categoryNames = map[OutputCategory]string{
	OutputResults:  "results",
	OutputErrors:   "errors",
	OutputStartup:  "startup",
	OutputSummary:  "summary",
	OutputTree:     "tree",
	OutputTokens:   "tokens",
	OutputTiming:   "timing",
	OutputRequests: "requests",
	OutputBodies:   "bodies",
}

// CategoryName returns the human-readable name for an output category
func CategoryName(category OutputCategory) string {
	if name, ok := categoryNames[category]; ok {
		return name
	}
	return "unknown"
}

// EnabledCategories returns all output categories enabled at the given verbosity, in order
func EnabledCategories(verbosity int) []OutputCategory {
	var enabled []OutputCategory
	for cat, minLevel := range categoryLevels {
		if verbosity >= minLevel {
			enabled = append(enabled, cat)
		}
	}
	sort.Slice(enabled, func(i, j int) bool { return enabled[i] < enabled[j] })
	return enabled
}
