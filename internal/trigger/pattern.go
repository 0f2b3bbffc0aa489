package trigger

import "strings"

// pattern is a document path template such as
// "groups/{groupId}/expenses/{expenseId}".
type pattern struct {
	raw  string
	segs []string
}

func parsePattern(raw string) pattern {
	return pattern{raw: raw, segs: strings.Split(raw, "/")}
}

// match reports whether path fits the pattern and returns the wildcard values.
func (p pattern) match(path string) (map[string]string, bool) {
	segs := strings.Split(path, "/")
	if len(segs) != len(p.segs) {
		return nil, false
	}
	params := make(map[string]string)
	for i, s := range p.segs {
		if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
			params[s[1:len(s)-1]] = segs[i]
			continue
		}
		if s != segs[i] {
			return nil, false
		}
	}
	return params, true
}
