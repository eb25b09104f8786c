package adminshell

import (
	"fmt"
	"strings"

	"github.com/cuemby/sentryd/pkg/apierr"
)

// Response is a successful admin shell command's outcome: the log lines
// accumulated before the result line, and the result or summary value
// itself (the text following "| OK: " or "| Result: ").
type Response struct {
	Lines  []string
	Result string
}

// Bool interprets Result as the boolean a Lua expression like
// `not not prosody.hosts["example.org"]` produces.
func (r *Response) Bool() (bool, error) {
	switch r.Result {
	case "true":
		return true, nil
	case "false", "nil":
		return false, nil
	default:
		return false, apierr.New(apierr.CodeShellUnexpected, fmt.Sprintf("unexpected boolean result %q", r.Result))
	}
}

// StringArray parses Result as a one-line Lua array literal, the format
// produced by `dump()` with the "oneline" serialization preset
// (e.g. `{ "offline"; "presence"; "c2s" }`).
func (r *Response) StringArray() []string {
	return parseLuaStringArray(r.Result)
}

func parseLuaStringArray(lua string) []string {
	lua = strings.TrimSpace(lua)
	if !strings.HasPrefix(lua, "{") || !strings.HasSuffix(lua, "}") {
		return nil
	}
	inner := strings.TrimSpace(lua[1 : len(lua)-1])
	if inner == "" {
		return nil
	}
	fields := strings.Split(inner, "; ")
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, strings.Trim(f, `"`))
	}
	return out
}

// commandName returns command truncated at its first '(' or '[', the
// point past which arguments (which may carry secrets) begin. Used only
// for logging; never for parsing.
func commandName(command string) string {
	idx := len(command)
	if p := strings.IndexByte(command, '('); p >= 0 && p < idx {
		idx = p
	}
	if b := strings.IndexByte(command, '['); b >= 0 && b < idx {
		idx = b
	}
	return command[:idx]
}
