// Package output provides JSON/Markdown output formatting and error handling.
package output

// Exit codes, stable across releases so scripts can branch on them.
const (
	ExitOK          = 0  // Success
	ExitUsage       = 1  // Invalid arguments, flags, or unparseable instruction
	ExitNotFound    = 2  // Card or column not found
	ExitAuth        = 3  // Not authenticated
	ExitForbidden   = 4  // Access denied
	ExitRateLimit   = 5  // Rate limited (429)
	ExitNetwork     = 6  // Connection/DNS/timeout error
	ExitProvider    = 7  // Board provider returned an error
	ExitAmbiguous   = 8  // Multiple cards match a title reference
	ExitUnsupported = 9  // Provider lacks the capability
	ExitUndoEmpty   = 10 // Nothing to undo
)

// Error codes for the JSON envelope.
const (
	CodeUsage       = "usage"
	CodeNotFound    = "not_found"
	CodeAuth        = "auth_required"
	CodeForbidden   = "forbidden"
	CodeRateLimit   = "rate_limit"
	CodeNetwork     = "network"
	CodeProvider    = "provider_error"
	CodeAmbiguous   = "ambiguous"
	CodeUnsupported = "unsupported"
	CodeUndoEmpty   = "undo_empty"
)

// ExitCodeFor returns the exit code for a given error code.
func ExitCodeFor(code string) int {
	switch code {
	case CodeUsage:
		return ExitUsage
	case CodeNotFound:
		return ExitNotFound
	case CodeAuth:
		return ExitAuth
	case CodeForbidden:
		return ExitForbidden
	case CodeRateLimit:
		return ExitRateLimit
	case CodeNetwork:
		return ExitNetwork
	case CodeProvider:
		return ExitProvider
	case CodeAmbiguous:
		return ExitAmbiguous
	case CodeUnsupported:
		return ExitUnsupported
	case CodeUndoEmpty:
		return ExitUndoEmpty
	default:
		return ExitProvider
	}
}
