// Package placeholder resolves the "${client.*}" tokens that appear in
// installation and run command arguments (C3). Literal substitutions are
// applied first, followed by a single regex sweep for asset-path
// references, so that resolving an already-resolved string is a no-op.
package placeholder

import (
	"path/filepath"
	"regexp"
	"strings"
)

const (
	serverURLPlaceholder = "${client.serverUrl}"
	secretPlaceholder    = "${client.openframeSecret}"
	tokenPathPlaceholder = "${client.openframeTokenPath}"
)

var assetPathPattern = regexp.MustCompile(`\$\{client\.assetPath\.([^}]+)\}`)

// Context carries the values shared across every tool's substitution:
// the gateway URL, the 32-byte secret, and the absolute path to the
// shared token file. ${client.assetPath.<name>} is resolved separately
// per tool_id by Resolve/ResolveAll, since each tool owns its own
// directory under AppSupportDir (spec.md §4.3).
type Context struct {
	ServerURL       string
	OpenFrameSecret string
	TokenPath       string
	// AppSupportDir is the application-support root; asset paths resolve
	// to <AppSupportDir>/<tool_id>/<capture>.
	AppSupportDir string
}

// Resolve replaces every known placeholder in s with its value from ctx,
// resolving ${client.assetPath.<name>} against toolID's own directory.
// Resolve is idempotent: running it on already-resolved output changes
// nothing because resolved values never themselves contain "${client.".
func Resolve(toolID, s string, ctx Context) string {
	out := s
	out = strings.ReplaceAll(out, serverURLPlaceholder, ctx.ServerURL)
	out = strings.ReplaceAll(out, secretPlaceholder, ctx.OpenFrameSecret)
	out = strings.ReplaceAll(out, tokenPathPlaceholder, ctx.TokenPath)

	out = assetPathPattern.ReplaceAllStringFunc(out, func(match string) string {
		sub := assetPathPattern.FindStringSubmatch(match)
		if sub == nil {
			return match
		}
		return filepath.Join(ctx.AppSupportDir, toolID, sub[1])
	})
	return out
}

// ResolveAll resolves every string in args for toolID.
func ResolveAll(toolID string, args []string, ctx Context) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = Resolve(toolID, a, ctx)
	}
	return out
}
