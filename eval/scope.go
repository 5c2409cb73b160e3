package eval

// Scope is a chained environment of name bindings. Lookups walk the
// parent chain; writes always land in the innermost scope, so a child
// shadows its parents and never mutates them. A scope used as a parent
// by concurrent workers must no longer be written.
type Scope struct {
	vars   map[string]Value
	parent *Scope
}

// NewScope creates a new scope chained to parent (parent may be nil)
func NewScope(parent *Scope) *Scope {
	return &Scope{
		vars:   make(map[string]Value),
		parent: parent,
	}
}

// Set binds a name in this scope
func (s *Scope) Set(name string, value Value) {
	s.vars[name] = value
}

// Get resolves a name, walking up the parent chain
func (s *Scope) Get(name string) (Value, bool) {
	if val, ok := s.vars[name]; ok {
		return val, true
	}
	if s.parent != nil {
		return s.parent.Get(name)
	}
	return nil, false
}
