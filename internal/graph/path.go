package graph

import "strings"

// CanonicalizePath normalizes slashes and collapses "." and ".." the way
// the planner's node table keys require: forward slashes only, no
// duplicate slashes, "." segments removed, ".." segments collapsed
// against a preceding real segment when one exists.
//
// Pinned boundary cases (spec §8):
//
//	CanonicalizePath("")        == ""
//	CanonicalizePath("/")       == ""
//	CanonicalizePath("./.")     == "."
//	CanonicalizePath("foo/..")  == "."
//	CanonicalizePath("../../a") == "../../a"
//	CanonicalizePath("foo//bar")== "foo/bar"
func CanonicalizePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	if path == "" {
		return ""
	}

	leadingSlash := strings.HasPrefix(path, "/")

	segments := strings.Split(path, "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			if n := len(out); n > 0 && out[n-1] != ".." {
				out = out[:n-1]
				continue
			}
			out = append(out, "..")
		default:
			out = append(out, seg)
		}
	}

	if leadingSlash {
		if len(out) == 0 {
			return ""
		}
		return "/" + strings.Join(out, "/")
	}

	if len(out) == 0 {
		return "."
	}
	return strings.Join(out, "/")
}
