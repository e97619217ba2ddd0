package executor

import (
	"net/url"
	"strings"

	"jitmcp/internal/domain"
)

type transportKind int

const (
	transportStdio transportKind = iota
	transportStreamableHTTP
)

// locator is a parsed tool server address.
type locator struct {
	kind     transportKind
	command  string
	args     []string
	endpoint string
}

// allowedCommands is the closed set of executables a stdio locator may
// launch. Anything else is refused before a process is ever spawned.
var allowedCommands = map[string]struct{}{
	"npx":     {},
	"node":    {},
	"python":  {},
	"python3": {},
	"uvx":     {},
	"uv":      {},
	"echo":    {},
	"docker":  {},
	"deno":    {},
	"bun":     {},
}

// parseLocator maps a tool URI onto a transport.
//
//	mcp://<command>/<arg>/<arg>...        stdio, command from the allowlist
//	mcp+stdio://<command>/<arg>...        same, explicit scheme
//	http(s)://host/path                   streamable HTTP endpoint
//
// Path segments become command arguments; percent-encode a segment to
// embed a literal slash (scoped npm packages).
func parseLocator(uri string) (locator, error) {
	const op = "executor.parse_locator"

	parsed, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return locator{}, domain.E(domain.CodeFailedPrecond, op, uri, domain.ErrInvalidLocator)
	}

	switch parsed.Scheme {
	case "http", "https":
		return locator{kind: transportStreamableHTTP, endpoint: parsed.String()}, nil

	case "mcp", "mcp+stdio":
		command := parsed.Host
		if command == "" {
			return locator{}, domain.E(domain.CodeFailedPrecond, op, "missing command in "+uri, domain.ErrInvalidLocator)
		}
		if _, ok := allowedCommands[command]; !ok {
			return locator{}, domain.E(domain.CodeFailedPrecond, op, command, domain.ErrCommandNotAllowed)
		}
		args, err := splitArgs(parsed.EscapedPath())
		if err != nil {
			return locator{}, domain.E(domain.CodeFailedPrecond, op, uri, domain.ErrInvalidLocator)
		}
		return locator{kind: transportStdio, command: command, args: args}, nil

	default:
		return locator{}, domain.E(domain.CodeFailedPrecond, op, "unsupported scheme in "+uri, domain.ErrInvalidLocator)
	}
}

// splitArgs turns an escaped URL path into argv entries, unescaping each
// segment so %2F survives as a literal slash inside one argument.
func splitArgs(escapedPath string) ([]string, error) {
	trimmed := strings.Trim(escapedPath, "/")
	if trimmed == "" {
		return nil, nil
	}
	segments := strings.Split(trimmed, "/")
	args := make([]string, 0, len(segments))
	for _, segment := range segments {
		arg, err := url.PathUnescape(segment)
		if err != nil {
			return nil, err
		}
		if arg == "" {
			continue
		}
		args = append(args, arg)
	}
	return args, nil
}
