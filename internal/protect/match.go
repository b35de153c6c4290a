package protect

import (
	"path"
	"strings"
)

// Match reports whether the slash-separated path p matches pattern. Each
// pattern segment follows path.Match; a "**" segment spans zero or more
// path segments.
func Match(pattern, p string) bool {
	return matchParts(strings.Split(p, "/"), strings.Split(pattern, "/"))
}

func matchParts(segs, pattern []string) bool {
	for len(pattern) > 0 {
		head := pattern[0]
		pattern = pattern[1:]

		if head == "**" {
			if len(pattern) == 0 {
				return true
			}
			for i := 0; i <= len(segs); i++ {
				if matchParts(segs[i:], pattern) {
					return true
				}
			}
			return false
		}

		if len(segs) == 0 {
			return false
		}
		if ok, err := path.Match(head, segs[0]); err != nil || !ok {
			return false
		}
		segs = segs[1:]
	}
	return len(segs) == 0
}
