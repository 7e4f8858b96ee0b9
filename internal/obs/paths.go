package obs

import "strings"

// CanonicalPath collapses record ids in metric labels to keep the
// cardinality of path-labeled series bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	for _, prefix := range []string{"/api/admissions/", "/api/visitors/"} {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		rest := strings.TrimPrefix(path, prefix)
		switch {
		case rest == "":
			return path
		case !strings.Contains(rest, "/"):
			return prefix + ":id"
		case strings.HasSuffix(rest, "/status") && strings.Count(rest, "/") == 1:
			return prefix + ":id/status"
		}
	}
	return path
}
