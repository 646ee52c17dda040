package manifest

import (
	"fmt"
	"strconv"
	"strings"

	"forge/internal/builderrors"
	"forge/internal/graph"
)

// Parser drives a recursive-descent, line-oriented parse of the manifest
// grammar directly into a graph.State. It is line-oriented (rather than
// a generic token stream) because the grammar's binding blocks are
// delimited by leading-whitespace indentation, the same way the
// format's real-world grammar is.
type Parser struct {
	state *graph.State
	file  string

	lines []string
	idx   int

	rootEnv *graph.Env
}

// New constructs a parser that will populate state.
func New(state *graph.State, fileName string, rootEnv *graph.Env) *Parser {
	if rootEnv == nil {
		rootEnv = graph.NewEnv(nil)
	}
	return &Parser{state: state, file: fileName, rootEnv: rootEnv}
}

// Parse consumes the full manifest source, calling into the graph.State
// as statements are recognized.
func (p *Parser) Parse(source string) error {
	p.lines = splitLinesJoiningContinuations(source)
	p.idx = 0

	for p.idx < len(p.lines) {
		line := p.lines[p.idx]
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			p.idx++
			continue
		}
		if indentOf(line) > 0 {
			return p.errf("unexpected indent")
		}

		var err error
		switch firstWord(trimmed) {
		case "rule":
			err = p.parseRule(trimmed)
		case "build":
			err = p.parseBuild(trimmed)
		case "pool":
			err = p.parsePool(trimmed)
		case "default":
			err = p.parseDefault(trimmed)
		case "include", "subninja":
			// External file inclusion is a manifest-layer concern only;
			// the core never needs to see it resolved to build a graph
			// for a single already-flattened file, so it is accepted
			// and ignored rather than followed.
			p.idx++
		default:
			err = p.parseBinding(trimmed, p.rootEnv)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) errf(format string, args ...any) error {
	return &builderrors.ParseError{File: p.file, Line: p.idx + 1, Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) parseRule(header string) error {
	fields := strings.Fields(header)
	if len(fields) != 2 {
		return p.errf("expected 'rule NAME'")
	}
	rule := graph.NewRule(fields[1])
	p.idx++
	for p.idx < len(p.lines) && indentOf(p.lines[p.idx]) > 0 {
		key, val, err := parseBindingLine(strings.TrimSpace(p.lines[p.idx]))
		if err != nil {
			return p.errf("%s", err)
		}
		rule.Bindings[key] = val
		p.idx++
	}
	p.state.AddRule(rule)
	return nil
}

func (p *Parser) parsePool(header string) error {
	fields := strings.Fields(header)
	if len(fields) != 2 {
		return p.errf("expected 'pool NAME'")
	}
	pool := graph.NewPool(fields[1], 0)
	p.idx++
	for p.idx < len(p.lines) && indentOf(p.lines[p.idx]) > 0 {
		key, val, err := parseBindingLine(strings.TrimSpace(p.lines[p.idx]))
		if err != nil {
			return p.errf("%s", err)
		}
		if key == "depth" {
			depth, convErr := strconv.Atoi(val)
			if convErr != nil {
				return p.errf("pool depth must be an integer: %s", val)
			}
			pool.Depth = depth
		}
		p.idx++
	}
	p.state.AddPool(pool)
	return nil
}

func (p *Parser) parseDefault(header string) error {
	fields := strings.Fields(header)
	for _, target := range fields[1:] {
		if err := p.state.AddDefault(target); err != nil {
			return err
		}
	}
	p.idx++
	return nil
}

// parseBuild handles:
//
//	build OUT1 OUT2 | IMPLICIT_OUT1 : RULE IN1 IN2 | IMPLICIT_IN || ORDERONLY |@ VALIDATION
func (p *Parser) parseBuild(header string) error {
	rest := strings.TrimSpace(strings.TrimPrefix(header, "build"))

	outPart, rulePart, ok := strings.Cut(rest, ":")
	if !ok {
		return p.errf("expected ':' in build statement")
	}
	explicitOuts, implicitOuts := splitOutputs(outPart)

	ruleFields := strings.Fields(rulePart)
	if len(ruleFields) == 0 {
		return p.errf("expected rule name after ':'")
	}
	ruleName := ruleFields[0]
	rule := p.state.LookupRule(ruleName)
	if rule == nil {
		return p.errf("unknown rule '%s'", ruleName)
	}

	explicitIns, implicitIns, orderOnlyIns, validations := splitInputs(strings.Join(ruleFields[1:], " "))

	env := graph.NewEnv(p.rootEnv)
	env.Set("in", strings.Join(explicitIns, " "))
	if len(explicitOuts) > 0 {
		env.Set("out", explicitOuts[0])
	}

	edge := p.state.AddEdge(rule, env)
	edge.Phony = ruleName == "phony"

	for _, path := range explicitOuts {
		if err := p.state.AddOutput(edge, p.state.GetNode(path), true); err != nil {
			return err
		}
	}
	for _, path := range implicitOuts {
		if err := p.state.AddOutput(edge, p.state.GetNode(path), false); err != nil {
			return err
		}
	}
	for _, path := range explicitIns {
		edge.AddInput(p.state.GetNode(path), graph.InputExplicit)
	}
	for _, path := range implicitIns {
		edge.AddInput(p.state.GetNode(path), graph.InputImplicit)
	}
	for _, path := range orderOnlyIns {
		edge.AddInput(p.state.GetNode(path), graph.InputOrderOnly)
	}
	for _, path := range validations {
		edge.AddValidation(p.state.GetNode(path))
	}

	// Rule-level pool/restat/generator apply unless the build block
	// below overrides them.
	if val := edge.Binding("pool"); val != "" {
		if pl := p.state.LookupPool(val); pl != nil {
			edge.Pool = pl
		}
	}
	if val := edge.Binding("restat"); val != "" {
		edge.Restat = val == "1" || val == "true"
	}
	if val := edge.Binding("generator"); val != "" {
		edge.Generator = val == "1" || val == "true"
	}

	p.idx++
	for p.idx < len(p.lines) && indentOf(p.lines[p.idx]) > 0 {
		key, val, err := parseBindingLine(strings.TrimSpace(p.lines[p.idx]))
		if err != nil {
			return p.errf("%s", err)
		}
		env.Set(key, val)
		switch key {
		case "pool":
			if pl := p.state.LookupPool(val); pl != nil {
				edge.Pool = pl
			}
		case "restat":
			edge.Restat = val == "1" || val == "true"
		case "generator":
			edge.Generator = val == "1" || val == "true"
		case "dyndep":
			edge.Dyndep = p.state.GetNode(val)
		}
		p.idx++
	}
	return nil
}

func (p *Parser) parseBinding(line string, env *graph.Env) error {
	key, val, err := parseBindingLine(line)
	if err != nil {
		return p.errf("%s", err)
	}
	env.Set(key, env.Evaluate(val))
	p.idx++
	return nil
}
