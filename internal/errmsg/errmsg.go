// Package errmsg provides enhanced error message formatting with actionable suggestions.
package errmsg

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/zepo-dev/zepo/internal/errtypes"
)

// ErrorContext provides additional context for error formatting.
type ErrorContext struct {
	PackageName string // the package being operated on (for suggestions)
}

// Fprint formats err with Format (no extra context) and writes it to w,
// the entry point cmd/zepo's command handlers use to report failures.
func Fprint(w io.Writer, err error) {
	fmt.Fprintln(w, Format(err, nil))
}

// Format returns a formatted error message with possible causes and suggestions.
// The context parameter is optional - pass nil for generic formatting.
func Format(err error, ctx *ErrorContext) string {
	if err == nil {
		return ""
	}

	errMsg := err.Error()

	var registryErr *errtypes.RegistryError
	if errors.As(err, &registryErr) {
		return formatRegistryError(registryErr, ctx)
	}

	var noMatch *errtypes.NoMatchingVersion
	if errors.As(err, &noMatch) {
		return formatNoMatchingVersion(noMatch, ctx)
	}

	var notInstalled *errtypes.NotInstalled
	if errors.As(err, &notInstalled) {
		return formatNotInstalled(notInstalled, ctx)
	}

	var downloadErr *errtypes.DownloadError
	if errors.As(err, &downloadErr) {
		return formatDownloadError(downloadErr, ctx)
	}

	var extractErr *errtypes.ExtractError
	if errors.As(err, &extractErr) {
		return formatExtractError(extractErr, ctx)
	}

	var sandboxErr *errtypes.SandboxError
	if errors.As(err, &sandboxErr) {
		return formatSandboxError(sandboxErr, ctx)
	}

	var manifestErr *errtypes.ManifestError
	if errors.As(err, &manifestErr) {
		return formatManifestError(manifestErr, ctx)
	}

	var configErr *errtypes.ConfigError
	if errors.As(err, &configErr) {
		return formatConfigError(configErr, ctx)
	}

	var parseErr *errtypes.ParseError
	if errors.As(err, &parseErr) {
		return formatRangeError(parseErr.Error(), ctx)
	}

	var lexErr *errtypes.LexError
	if errors.As(err, &lexErr) {
		return formatRangeError(lexErr.Error(), ctx)
	}

	var versionParseErr *errtypes.VersionParseError
	if errors.As(err, &versionParseErr) {
		return formatRangeError(versionParseErr.Error(), ctx)
	}

	// Unstructured errors (bare network/os errors not wrapped above):
	// fall back to string matching, same as for structured errors we
	// have no dedicated formatter for.
	if isRateLimitError(errMsg) {
		return formatRateLimitError(errMsg, ctx)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return formatNetworkError(netErr, ctx)
	}

	if isNetworkError(errMsg) {
		return formatGenericNetworkError(errMsg, ctx)
	}

	if isNotFoundError(errMsg) {
		return formatNotFoundError(errMsg, ctx)
	}

	if isPermissionError(errMsg) {
		return formatPermissionError(errMsg, ctx)
	}

	return errMsg
}

func formatRegistryError(err *errtypes.RegistryError, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteString("\n")

	if isRateLimitError(err.Error()) {
		return formatRateLimitError(err.Error(), ctx)
	}
	if isNotFoundError(err.Error()) {
		sb.WriteString("\nPossible causes:\n")
		sb.WriteString("  - The package name is misspelled\n")
		sb.WriteString("  - The package does not exist on this registry\n")
		sb.WriteString("\nSuggestions:\n")
		if ctx != nil && ctx.PackageName != "" {
			sb.WriteString(fmt.Sprintf("  - Check the registry page for %s\n", ctx.PackageName))
		}
		return sb.String()
	}

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - Registry temporarily unavailable\n")
	sb.WriteString("  - Network connectivity issue\n")
	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check your internet connection\n")
	sb.WriteString("  - Try again in a few minutes\n")
	return sb.String()
}

func formatNoMatchingVersion(err *errtypes.NoMatchingVersion, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - The requested range does not match any published version\n")
	sb.WriteString("  - A dependency's declared range is stricter than intended\n")

	sb.WriteString("\nSuggestions:\n")
	if ctx != nil && ctx.PackageName != "" {
		sb.WriteString(fmt.Sprintf("  - Check the published versions of %s on the registry\n", ctx.PackageName))
	} else {
		sb.WriteString("  - Check the published versions of the package on the registry\n")
	}
	sb.WriteString("  - Widen the version range in package.json\n")
	return sb.String()
}

func formatNotInstalled(err *errtypes.NotInstalled, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - The package has not been installed yet\n")
	sb.WriteString("  - The installed version does not satisfy the requested range\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Run the install command before building or generating\n")
	sb.WriteString("  - Check $ZEPO_HOME/packages for the installed versions\n")
	return sb.String()
}

func formatDownloadError(err *errtypes.DownloadError, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - Network connectivity issue while fetching the tarball\n")
	sb.WriteString("  - The tarball URL redirected somewhere disallowed\n")
	sb.WriteString("  - The registry is temporarily unavailable\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check your internet connection\n")
	sb.WriteString("  - Try again in a few minutes\n")
	return sb.String()
}

func formatExtractError(err *errtypes.ExtractError, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - The downloaded archive is corrupt or truncated\n")
	sb.WriteString("  - The archive contains a path outside its destination directory\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Delete the cached download under $ZEPO_HOME/downloads and retry\n")
	sb.WriteString("  - Report the issue if the archive comes from a trusted registry\n")
	return sb.String()
}

func formatSandboxError(err *errtypes.SandboxError, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - The build or generator script threw an exception\n")
	sb.WriteString("  - The script's export is missing or has the wrong shape\n")

	sb.WriteString("\nSuggestions:\n")
	if err.ScriptPath != "" {
		sb.WriteString(fmt.Sprintf("  - Inspect %s for syntax or logic errors\n", err.ScriptPath))
	} else {
		sb.WriteString("  - Inspect the package's build script for syntax or logic errors\n")
	}
	return sb.String()
}

func formatManifestError(err *errtypes.ManifestError, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - package.json is missing a required field\n")
	sb.WriteString("  - package.json is not valid JSON\n")

	sb.WriteString("\nSuggestions:\n")
	if err.Path != "" {
		sb.WriteString(fmt.Sprintf("  - Validate %s\n", err.Path))
	} else {
		sb.WriteString("  - Validate the package manifest\n")
	}
	return sb.String()
}

func formatConfigError(err *errtypes.ConfigError, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - config.json is not valid JSON\n")
	sb.WriteString("  - config.json is missing a required field\n")

	sb.WriteString("\nSuggestions:\n")
	if err.Path != "" {
		sb.WriteString(fmt.Sprintf("  - Validate %s\n", err.Path))
	} else {
		sb.WriteString("  - Validate the zepo configuration file\n")
	}
	return sb.String()
}

func formatRangeError(msg string, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(msg)
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - A dependency range uses invalid syntax\n")
	sb.WriteString("  - A version string does not follow semantic versioning\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check the dependency ranges declared in package.json\n")
	return sb.String()
}

func formatRateLimitError(errMsg string, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - Too many requests to the registry\n")
	sb.WriteString("  - Unauthenticated requests have lower limits\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Configure registry credentials in config.json\n")
	sb.WriteString("  - Wait a few minutes before retrying\n")
	return sb.String()
}

func formatNetworkError(err net.Error, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	if err.Timeout() {
		sb.WriteString("  - Request timed out\n")
		sb.WriteString("  - Slow or unstable network connection\n")
	} else {
		sb.WriteString("  - Network connectivity issue\n")
		sb.WriteString("  - DNS resolution failure\n")
	}
	sb.WriteString("  - Firewall or proxy blocking the connection\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check your internet connection\n")
	sb.WriteString("  - Try again in a few minutes\n")
	if err.Timeout() {
		sb.WriteString("  - Check if you're behind a slow proxy\n")
	}
	return sb.String()
}

func formatGenericNetworkError(errMsg string, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - Network connectivity issue\n")
	sb.WriteString("  - DNS resolution failure\n")
	sb.WriteString("  - Service temporarily unavailable\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check your internet connection\n")
	sb.WriteString("  - Try again in a few minutes\n")
	return sb.String()
}

func formatNotFoundError(errMsg string, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - The package does not exist in the registry\n")
	sb.WriteString("  - Typo in the package name\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check the spelling of the package name\n")
	if ctx != nil && ctx.PackageName != "" {
		sb.WriteString(fmt.Sprintf("  - Search the registry for %s\n", ctx.PackageName))
	}
	return sb.String()
}

func formatPermissionError(errMsg string, ctx *ErrorContext) string {
	var sb strings.Builder
	sb.WriteString(errMsg)
	sb.WriteString("\n")

	sb.WriteString("\nPossible causes:\n")
	sb.WriteString("  - Insufficient permissions on $ZEPO_HOME directory\n")
	sb.WriteString("  - File or directory owned by a different user\n")

	sb.WriteString("\nSuggestions:\n")
	sb.WriteString("  - Check permissions on the zepo home directory\n")
	sb.WriteString("  - Ensure you own $ZEPO_HOME: ls -la $ZEPO_HOME\n")
	return sb.String()
}

func isRateLimitError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "rate-limit") ||
		strings.Contains(lower, "too many requests") ||
		strings.Contains(lower, "429")
}

func isNetworkError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "network is unreachable") ||
		strings.Contains(lower, "dial tcp") ||
		strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "i/o timeout")
}

func isNotFoundError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "not found") ||
		strings.Contains(lower, "404") ||
		strings.Contains(lower, "does not exist")
}

func isPermissionError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "access denied") ||
		strings.Contains(lower, "operation not permitted")
}
