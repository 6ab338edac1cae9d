package workspace

import (
	"regexp"
	"strings"
)

var usernamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`instagram\.com/([^/?#]+)`),
	regexp.MustCompile(`^@?([a-zA-Z0-9._]+)$`),
}

// ExtractUsername accepts a profile URL, "@handle" or a bare handle.
func ExtractUsername(input string) (string, bool) {
	input = strings.TrimSpace(input)
	for _, p := range usernamePatterns {
		if m := p.FindStringSubmatch(input); m != nil {
			username := strings.TrimPrefix(m[1], "@")
			if username != "" {
				return username, true
			}
		}
	}
	return "", false
}
