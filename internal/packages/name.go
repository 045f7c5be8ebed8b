package packages

import "strings"

// AbsoluteName returns the package a module specifier refers to. Relative
// and absolute paths name no package. A scoped specifier keeps its first
// two segments, any other specifier its first.
func AbsoluteName(spec string) (string, bool) {
	if spec == "" || spec[0] == '.' || spec[0] == '/' {
		return "", false
	}
	parts := strings.Split(spec, "/")
	if spec[0] == '@' {
		if len(parts) < 2 || parts[1] == "" {
			return "", false
		}
		return parts[0] + "/" + parts[1], true
	}
	return parts[0], true
}
