package graph

import "strings"

// Rule is a named command template plus its unevaluated variable
// bindings. Evaluation happens per-edge against that edge's Env, so the
// same Rule can be shared by many edges with different $in/$out.
type Rule struct {
	Name     string
	Bindings map[string]string
}

// NewRule creates an empty rule ready to accept bindings.
func NewRule(name string) *Rule {
	return &Rule{Name: name, Bindings: map[string]string{}}
}

// Binding returns the unevaluated template for key, or "" if unset.
func (r *Rule) Binding(key string) string {
	return r.Bindings[key]
}

// Env is a lexically scoped set of variable bindings: edge-level bindings
// shadow rule-level bindings, which shadow the enclosing (file-level)
// scope.
type Env struct {
	bindings map[string]string
	parent   *Env
}

// NewEnv creates a scope, optionally nested under parent (pass nil for
// the root file scope).
func NewEnv(parent *Env) *Env {
	return &Env{bindings: map[string]string{}, parent: parent}
}

// Set assigns a binding visible in this scope and any child scope that
// does not shadow it.
func (e *Env) Set(key, value string) {
	e.bindings[key] = value
}

// Lookup resolves key, searching outward through parent scopes.
func (e *Env) Lookup(key string) string {
	for s := e; s != nil; s = s.parent {
		if v, ok := s.bindings[key]; ok {
			return v
		}
	}
	return ""
}

// Evaluate substitutes every "$name" and "${name}" reference in template
// against this scope. "$$" escapes to a literal "$".
func (e *Env) Evaluate(template string) string {
	var b strings.Builder
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '$' || i == len(template)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch {
		case template[i] == '$':
			b.WriteByte('$')
		case template[i] == '{':
			end := strings.IndexByte(template[i:], '}')
			if end < 0 {
				b.WriteString(template[i:])
				i = len(template)
				continue
			}
			name := template[i+1 : i+end]
			b.WriteString(e.Lookup(name))
			i += end
		case template[i] == ' ':
			b.WriteByte('$')
			b.WriteByte(' ')
		case template[i] == '\n':
			// "$\n" is a line continuation producing nothing.
		default:
			j := i
			for j < len(template) && isVarChar(template[j]) {
				j++
			}
			name := template[i:j]
			b.WriteString(e.Lookup(name))
			i = j - 1
		}
	}
	return b.String()
}

func isVarChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
