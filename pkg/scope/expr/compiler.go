package expr

import (
	"strings"
	"sync"
)

// Env supplies identifier values during evaluation.
type Env interface {
	Lookup(name string) (any, bool)
}

// MapEnv adapts a plain map into an Env.
type MapEnv map[string]any

// Lookup implements Env.
func (m MapEnv) Lookup(name string) (any, bool) {
	value, ok := m[name]
	return value, ok
}

// Func is a callable exposed to expressions. Only registered functions and
// scope values of this exact type can be invoked.
type Func func(args ...any) (any, error)

// Program is a compiled expression, safe for concurrent evaluation.
type Program struct {
	source   string
	root     node
	compiler *Compiler
}

// Source returns the expression text the program was compiled from.
func (p *Program) Source() string { return p.source }

// Eval evaluates the program against env.
func (p *Program) Eval(env Env) (any, error) {
	st := &evalState{env: env}
	if p.compiler != nil {
		st.funcs = p.compiler.function
	}
	return p.root.eval(st)
}

type compiled struct {
	program *Program
	err     error
}

// Compiler parses expression text once and caches the result, including
// parse failures, keyed by the trimmed source.
type Compiler struct {
	mu    sync.RWMutex
	funcs map[string]Func
	cache sync.Map
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithFunction registers an additional callable.
func WithFunction(name string, fn Func) Option {
	return func(c *Compiler) {
		c.Register(name, fn)
	}
}

// WithoutBuiltins drops the default function set.
func WithoutBuiltins() Option {
	return func(c *Compiler) {
		c.funcs = make(map[string]Func)
	}
}

// NewCompiler constructs a compiler seeded with the built-in functions.
func NewCompiler(options ...Option) *Compiler {
	c := &Compiler{funcs: builtins()}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c
}

// Register adds or replaces a callable.
func (c *Compiler) Register(name string, fn Func) {
	name = strings.TrimSpace(name)
	if name == "" || fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.funcs == nil {
		c.funcs = make(map[string]Func)
	}
	c.funcs[name] = fn
}

func (c *Compiler) function(name string) (Func, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.funcs[name]
	return fn, ok
}

// Compile returns the cached program for src, parsing it on first use.
func (c *Compiler) Compile(src string) (*Program, error) {
	key := strings.TrimSpace(src)
	if cached, ok := c.cache.Load(key); ok {
		entry := cached.(compiled)
		return entry.program, entry.err
	}
	root, err := parse(key)
	entry := compiled{err: err}
	if err == nil {
		entry.program = &Program{source: key, root: root, compiler: c}
	}
	actual, _ := c.cache.LoadOrStore(key, entry)
	stored := actual.(compiled)
	return stored.program, stored.err
}

// Eval compiles (or reuses) src and evaluates it against env.
func (c *Compiler) Eval(src string, env Env) (any, error) {
	program, err := c.Compile(src)
	if err != nil {
		return nil, err
	}
	return program.Eval(env)
}
