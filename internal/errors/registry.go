package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (E100-E109)
	// ============================================

	"E100": {
		Category: CategoryConfig,
		Message:  "Invalid bar.json",
		Detail:   "The bar.json configuration file is not valid JSON or has fields of the wrong type.",
	},
	"E101": {
		Category:   CategoryConfig,
		Message:    "Missing required configuration",
		Detail:     "A required setting is empty. It can be set in bar.json, in the environment, or with a flag.",
		Suggestion: "Set BAR_BASE_URL, BAR_ROOM and BAR_NICKNAME, or pass --url, --room and --nick",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Invalid duration",
		Detail:   "Durations are written as Go duration strings such as \"500ms\" or \"15s\".",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Configuration value out of range",
		Detail:   "A numeric setting is outside the range the client accepts.",
	},
	"E104": {
		Category: CategoryConfig,
		Message:  "Cannot write bar.json",
		Detail:   "The configuration file could not be written to disk.",
	},

	// ============================================
	// Map Errors (E110-E119)
	// ============================================

	"E110": {
		Category:   CategoryMap,
		Message:    "Map not found",
		Detail:     "No collision map exists at the configured location.",
		Suggestion: "Use builtin:bar for the compiled-in map, a file path, or s3://bucket/key",
	},
	"E111": {
		Category: CategoryMap,
		Message:  "Invalid map",
		Detail:   "The map is not a Tiled JSON export with a positive size and complete tile layers.",
	},
	"E112": {
		Category: CategoryMap,
		Message:  "Map too large",
		Detail:   "The map exceeds the size limit for collision data.",
	},
	"E113": {
		Category: CategoryMap,
		Message:  "Map storage unavailable",
		Detail:   "The object store holding the map could not be reached or refused the request.",
	},

	// ============================================
	// Transport Errors (E120-E129)
	// ============================================

	"E120": {
		Category: CategoryTransport,
		Message:  "Invalid server URL",
		Detail:   "The base URL must be an http, https, ws or wss URL with a host.",
	},
	"E121": {
		Category:   CategoryTransport,
		Message:    "Reconnect attempts exhausted",
		Detail:     "The connection was lost and every reconnect attempt failed. The client has stopped retrying.",
		Suggestion: "Check that the room server is running and reachable",
	},
	"E122": {
		Category: CategoryTransport,
		Message:  "Debug server failed",
		Detail:   "The debug HTTP listener could not be started.",
	},

	// ============================================
	// Protocol Errors (E130-E139)
	// ============================================

	"E130": {
		Category: CategoryProtocol,
		Message:  "Server rejected request",
		Detail:   "The room server answered with an error envelope.",
	},

	// ============================================
	// CLI Errors (E140-E149)
	// ============================================

	"E140": {
		Category: CategoryCLI,
		Message:  "Invalid arguments",
		Detail:   "The command was called with arguments it does not accept.",
	},
	"E141": {
		Category: CategoryCLI,
		Message:  "Unknown key",
		Detail:   "Movement keys are w, a, s, d and the arrow keys.",
	},
}

// GetAllCodes returns all registered error codes in order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
