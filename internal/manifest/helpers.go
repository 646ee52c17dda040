package manifest

import (
	"fmt"
	"strings"
)

// splitLinesJoiningContinuations splits source into logical lines,
// joining any physical line ending in "$" onto the next.
func splitLinesJoiningContinuations(source string) []string {
	raw := strings.Split(source, "\n")
	var out []string
	var cur strings.Builder
	joining := false
	for _, line := range raw {
		if joining {
			cur.WriteString(strings.TrimLeft(line, " \t"))
		} else {
			cur.Reset()
			cur.WriteString(line)
		}
		trimmed := strings.TrimRight(cur.String(), " \t")
		if strings.HasSuffix(trimmed, "$") && !strings.HasSuffix(trimmed, "$$") {
			cur.Reset()
			cur.WriteString(strings.TrimSuffix(trimmed, "$"))
			joining = true
			continue
		}
		joining = false
		out = append(out, cur.String())
	}
	return out
}

func indentOf(line string) int {
	n := 0
	for n < len(line) && (line[n] == ' ' || line[n] == '\t') {
		n++
	}
	if n == len(line) {
		return 0 // blank line: not a continuation of a block.
	}
	return n
}

func firstWord(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

// parseBindingLine parses "key = value", trimming surrounding
// whitespace from both sides.
func parseBindingLine(line string) (key, value string, err error) {
	k, v, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", fmt.Errorf("expected 'key = value', got %q", line)
	}
	return strings.TrimSpace(k), strings.TrimSpace(v), nil
}

// splitOutputs parses "OUT1 OUT2 | IMPLICIT1 IMPLICIT2" into its two
// partitions.
func splitOutputs(s string) (explicit, implicit []string) {
	before, after, hasImplicit := strings.Cut(s, "|")
	explicit = strings.Fields(before)
	if hasImplicit {
		implicit = strings.Fields(after)
	}
	return
}

// splitInputs parses "RULE-less input tail": "IN1 IN2 | IMPLICIT ||
// ORDERONLY |@ VALIDATION" into its four partitions. The rule name
// itself has already been stripped by the caller.
func splitInputs(s string) (explicit, implicit, orderOnly, validation []string) {
	// Validation ("|@") is pulled out first since it may appear anywhere
	// relative to "||", and its marker is unambiguous.
	if before, after, ok := strings.Cut(s, "|@"); ok {
		validation = strings.Fields(after)
		s = before
	}
	before, after, hasOrderOnly := strings.Cut(s, "||")
	if hasOrderOnly {
		orderOnly = strings.Fields(after)
	}
	explicitPart, implicitPart, hasImplicit := strings.Cut(before, "|")
	explicit = strings.Fields(explicitPart)
	if hasImplicit {
		implicit = strings.Fields(implicitPart)
	}
	return
}
