package manifest

import (
	"strings"

	"forge/internal/builderrors"
)

// DyndepRecord is one parsed "build" statement from a dyndep file: the
// extra implicit inputs/outputs discovered for an already-declared edge,
// and optionally a restat override.
type DyndepRecord struct {
	Output            string
	ImplicitOutputs   []string
	ImplicitInputs    []string
	RestatOverride    bool
	HasRestatOverride bool
}

// ParseDyndep parses a dyndep file: a "ninja_dyndep_version = 1" header
// followed by any number of
//
//	build OUT | IMPLICIT_OUT : dyndep | IMPLICIT_IN
//	  restat = 1
//
// statements. This is deliberately a small, separate grammar from the
// main manifest's: dyndep files only ever extend edges that already
// exist, so there is no rule/pool/default vocabulary to support.
func ParseDyndep(source string) ([]DyndepRecord, error) {
	lines := splitLinesJoiningContinuations(source)
	if len(lines) == 0 {
		return nil, &builderrors.ParseError{Msg: "empty dyndep file"}
	}

	idx := 0
	for idx < len(lines) && strings.TrimSpace(lines[idx]) == "" {
		idx++
	}
	if idx >= len(lines) {
		return nil, &builderrors.ParseError{Msg: "empty dyndep file"}
	}
	key, val, err := parseBindingLine(strings.TrimSpace(lines[idx]))
	if err != nil || key != "ninja_dyndep_version" || strings.TrimSpace(val) != "1" {
		return nil, &builderrors.ParseError{Msg: "expected 'ninja_dyndep_version = 1' as the first statement"}
	}
	idx++

	var records []DyndepRecord
	for idx < len(lines) {
		line := lines[idx]
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			idx++
			continue
		}
		if firstWord(trimmed) != "build" {
			return nil, &builderrors.ParseError{Line: idx + 1, Msg: "expected 'build' statement in dyndep file"}
		}

		rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "build"))
		outPart, rulePart, ok := strings.Cut(rest, ":")
		if !ok {
			return nil, &builderrors.ParseError{Line: idx + 1, Msg: "expected ':' in dyndep build statement"}
		}
		explicitOuts, implicitOuts := splitOutputs(outPart)
		if len(explicitOuts) != 1 {
			return nil, &builderrors.ParseError{Line: idx + 1, Msg: "dyndep build statement must name exactly one output"}
		}

		ruleFields := strings.Fields(rulePart)
		if len(ruleFields) == 0 || ruleFields[0] != "dyndep" {
			return nil, &builderrors.ParseError{Line: idx + 1, Msg: "expected 'dyndep' as the rule name"}
		}
		_, implicitIns, _, _ := splitInputs(strings.Join(ruleFields[1:], " "))

		rec := DyndepRecord{Output: explicitOuts[0], ImplicitOutputs: implicitOuts, ImplicitInputs: implicitIns}
		idx++
		for idx < len(lines) && indentOf(lines[idx]) > 0 {
			k, v, err := parseBindingLine(strings.TrimSpace(lines[idx]))
			if err != nil {
				return nil, &builderrors.ParseError{Line: idx + 1, Msg: err.Error()}
			}
			if k == "restat" {
				rec.HasRestatOverride = true
				rec.RestatOverride = v == "1" || v == "true"
			}
			idx++
		}
		records = append(records, rec)
	}
	return records, nil
}
