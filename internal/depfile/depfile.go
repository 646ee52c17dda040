// Package depfile parses Makefile-fragment dependency files (the
// "deps = gcc" output format): "output: input1 input2 \\\n  input3".
package depfile

import (
	"strings"

	"forge/internal/builderrors"
)

// Parse extracts the input paths named on the right of the first ':' in
// a Makefile fragment, across backslash-newline continuations. The
// output name before ':' is not validated against the caller's expected
// output; callers that care should compare it themselves.
func Parse(data []byte) (output string, inputs []string, err error) {
	s := strings.ReplaceAll(string(data), "\\\n", " ")
	s = strings.ReplaceAll(s, "\\\r\n", " ")

	colon := strings.IndexByte(s, ':')
	if colon < 0 {
		return "", nil, &builderrors.ParseError{Msg: "depfile missing ':'"}
	}
	output = strings.TrimSpace(s[:colon])

	rest := s[colon+1:]
	inputs = tokenize(rest)
	return output, inputs, nil
}

// tokenize splits rest on unescaped whitespace, the way make treats a
// backslash-space pair as a literal space inside a filename rather than
// a token boundary. strings.Fields alone can't express that: it has no
// notion of "this whitespace doesn't count."
func tokenize(rest string) []string {
	var tokens []string
	var cur strings.Builder
	for i := 0; i < len(rest); i++ {
		switch {
		case rest[i] == '\\' && i+1 < len(rest) && rest[i+1] == ' ':
			cur.WriteByte(' ')
			i++
		case rest[i] == '\\' && i+1 < len(rest) && rest[i+1] == '#':
			cur.WriteByte('#')
			i++
		case rest[i] == ' ' || rest[i] == '\t' || rest[i] == '\n' || rest[i] == '\r':
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteByte(rest[i])
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}
