package compose

import (
	"fmt"
	"strings"
	"unicode"
)

// NormalizeCommand turns pasted multi-line shell input into one logical
// command line.
//
// Lines ending in a continuation marker ("\" or "^") lose the marker and run
// into the next line. Any other line is followed by an extra blank token, so
// two plain lines end up separated by three spaces.
func NormalizeCommand(input string) string {
	text := strings.ReplaceAll(input, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	parts := make([]string, 0, len(lines)*2)
	for _, raw := range lines {
		line := strings.TrimRightFunc(raw, unicode.IsSpace)
		if strings.HasSuffix(line, "\\") || strings.HasSuffix(line, "^") {
			parts = append(parts, strings.TrimRightFunc(line[:len(line)-1], unicode.IsSpace))
			continue
		}
		parts = append(parts, line, " ")
	}

	return strings.TrimSpace(strings.Join(parts, " "))
}

// EscapeForBash escapes double quotes for embedding in a "..." argument
func EscapeForBash(command string) string {
	return strings.ReplaceAll(command, `"`, `\"`)
}

// ExecCommandLine renders the exec invocation as it would be typed in a shell
func ExecCommandLine(containerRef, command string) string {
	return fmt.Sprintf(`%s exec %s bash -lc "%s"`, DockerExecutable, containerRef, EscapeForBash(command))
}
