package action

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Phase distinguishes failure events from success events.
type Phase string

// Event phases.
const (
	PhaseFailure Phase = "failure"
	PhaseSuccess Phase = "success"
)

// Event is what matchers are evaluated against: the outcome of one action
// invocation plus its contextual fields.
type Event struct {
	Phase  Phase
	Action string
	Err    error
	Fields map[string]any
}

// Field returns a contextual field, or nil.
func (e Event) Field(name string) any {
	return e.Fields[name]
}

// Predicate decides whether an event is of interest. Predicates are cheap
// and must not mutate the event.
type Predicate interface {
	Match(e Event) bool
}

// PredicateFunc adapts a function to the Predicate interface.
type PredicateFunc func(e Event) bool

// Match implements Predicate.
func (f PredicateFunc) Match(e Event) bool { return f(e) }

// If returns a Predicate that matches when fn returns true.
func If(fn func(Event) bool) Predicate {
	return PredicateFunc(fn)
}

// Unless returns a Predicate that matches when fn returns false.
func Unless(fn func(Event) bool) Predicate {
	return Not(PredicateFunc(fn))
}

// Not inverts a Predicate.
func Not(p Predicate) Predicate {
	return not{p: p}
}

type not struct {
	p Predicate
}

func (n not) Match(e Event) bool { return !n.p.Match(e) }

// And returns a Predicate that matches when all predicates match.
func And(ps ...Predicate) Predicate {
	return and{ps: ps}
}

type and struct {
	ps []Predicate
}

func (a and) Match(e Event) bool {
	for _, p := range a.ps {
		if !p.Match(e) {
			return false
		}
	}
	return true
}

// Or returns a Predicate that matches when any predicate matches.
func Or(ps ...Predicate) Predicate {
	return or{ps: ps}
}

type or struct {
	ps []Predicate
}

func (o or) Match(e Event) bool {
	for _, p := range o.ps {
		if p.Match(e) {
			return true
		}
	}
	return false
}

// TypeRegistry maps names to types so that From can refer to an error type,
// or an interface several error types implement, without importing it.
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[string][]reflect.Type
}

// NewTypeRegistry returns an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{types: make(map[string][]reflect.Type)}
}

// Register associates name with t. A name may stand for several types.
func (r *TypeRegistry) Register(name string, t reflect.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[name] = append(r.types[name], t)
}

func (r *TypeRegistry) resolve(name string) []reflect.Type {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.types[name]
}

// From returns a Predicate matching events whose error, or any error it
// wraps, is of one of the given types or a type embedding one of them.
//
// Each entry is a type name ("NotFoundError", "*store.NotFoundError"), a
// reflect.Type, or a sample value such as (*NotFoundError)(nil). Interface
// types match every implementation. Events without an error never match.
func From(types ...any) (Predicate, error) {
	return newFromRule(nil, types)
}

func newFromRule(registry *TypeRegistry, entries []any) (Predicate, error) {
	if len(entries) == 0 {
		return nil, configErrorf("", "from", "at least one type is required")
	}
	rule := fromRule{registry: registry}
	for _, entry := range entries {
		switch v := entry.(type) {
		case string:
			if strings.TrimSpace(v) == "" {
				return nil, configErrorf("", "from", "blank type name")
			}
			rule.names = append(rule.names, v)
		case reflect.Type:
			rule.types = append(rule.types, v)
		case nil:
			return nil, configErrorf("", "from", "nil type")
		default:
			rule.types = append(rule.types, reflect.TypeOf(v))
		}
	}
	return rule, nil
}

type fromRule struct {
	names    []string
	types    []reflect.Type
	registry *TypeRegistry
}

func (r fromRule) Match(e Event) bool {
	if e.Err == nil {
		return false
	}
	return walkChain(e.Err, func(err error) bool {
		t := reflect.TypeOf(err)
		for _, want := range r.types {
			if typeMatches(t, want) {
				return true
			}
		}
		for _, name := range r.names {
			if typeNamed(t, name) {
				return true
			}
			for _, want := range r.registry.resolve(name) {
				if typeMatches(t, want) {
					return true
				}
			}
		}
		return false
	})
}

// walkChain visits err and everything it wraps, depth first, until fn
// returns true.
func walkChain(err error, fn func(error) bool) bool {
	if err == nil {
		return false
	}
	if fn(err) {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return walkChain(u.Unwrap(), fn)
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if walkChain(inner, fn) {
				return true
			}
		}
	}
	return false
}

// typeMatches reports whether t is want, implements want, or embeds want.
// Pointer and value forms of a struct type are treated alike.
func typeMatches(t, want reflect.Type) bool {
	if want.Kind() == reflect.Interface {
		return t.Implements(want)
	}
	base := want
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	same := func(ft reflect.Type) bool {
		return ft == want || ft == base || (ft.Kind() == reflect.Pointer && ft.Elem() == base)
	}
	return same(t) || embeds(t, same)
}

// typeNamed reports whether t, or a type it embeds, carries name. Names may
// be bare ("NotFoundError"), package qualified ("store.NotFoundError") or
// pointer qualified ("*store.NotFoundError").
func typeNamed(t reflect.Type, name string) bool {
	named := func(ft reflect.Type) bool {
		if ft.String() == name {
			return true
		}
		base := ft
		if base.Kind() == reflect.Pointer {
			base = base.Elem()
		}
		return base.Name() == name || base.String() == name
	}
	return named(t) || embeds(t, named)
}

func embeds(t reflect.Type, fn func(reflect.Type) bool) bool {
	return embedsDepth(t, fn, 0)
}

func embedsDepth(t reflect.Type, fn func(reflect.Type) bool, depth int) bool {
	if depth > 8 {
		return false
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		if fn(f.Type) || embedsDepth(f.Type, fn, depth+1) {
			return true
		}
	}
	return false
}

// MatchOptions is the declarative form of a Matcher.
type MatchOptions struct {
	If     func(Event) bool
	Unless func(Event) bool
	From   []any
}

// Matcher is the conjunction of its rules, optionally inverted. It is
// immutable and safe for concurrent use.
type Matcher struct {
	rules  []Predicate
	invert bool
}

// NewMatcher builds a Matcher from options.
//
// If contributes a rule that holds when it returns true. Unless contributes
// its predicate as a rule and inverts the whole match, so Unless alone holds
// when it returns false, while If and Unless together hold unless both
// return true. From constrains the error type and is omitted when empty.
// Options with no rules match every event.
func NewMatcher(opts MatchOptions, registry *TypeRegistry) (*Matcher, error) {
	m := &Matcher{}
	if opts.If != nil {
		m.rules = append(m.rules, If(opts.If))
	}
	if opts.Unless != nil {
		m.rules = append(m.rules, PredicateFunc(opts.Unless))
		m.invert = true
	}
	if len(opts.From) > 0 {
		rule, err := newFromRule(registry, opts.From)
		if err != nil {
			return nil, err
		}
		m.rules = append(m.rules, rule)
	}
	return m, nil
}

// MatcherOf wraps existing predicates in a Matcher.
func MatcherOf(invert bool, rules ...Predicate) *Matcher {
	return &Matcher{rules: append([]Predicate(nil), rules...), invert: invert}
}

// Match reports whether e satisfies the matcher. A panicking rule counts as
// a non-match.
func (m *Matcher) Match(e Event) bool {
	ok, _ := m.evaluate(e)
	return ok
}

// Inverted reports whether the matcher inverts its conjunction.
func (m *Matcher) Inverted() bool { return m.invert }

func (m *Matcher) evaluate(e Event) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("matcher panicked: %w", panicError(r))
		}
	}()
	result := true
	for _, r := range m.rules {
		if !r.Match(e) {
			result = false
			break
		}
	}
	if m.invert {
		return !result, nil
	}
	return result, nil
}
