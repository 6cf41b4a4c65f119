package interceptor

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"gopkg.in/yaml.v2"
)

var (
	// ErrTargetAlreadyDeclared is returned when a method is given a second
	// injection target. The first target is kept.
	ErrTargetAlreadyDeclared = errors.New("injection target already declared")
	// ErrInvalidTarget is returned for an empty field name or negative index.
	ErrInvalidTarget = errors.New("invalid injection target")
)

type targetKind int

const (
	noTarget targetKind = iota
	fieldTarget
	argTarget
)

// Target identifies where decoded claims are written after a successful
// verification. The zero Target means no injection.
type Target struct {
	kind  targetKind
	field string
	index int
}

// FieldTarget names an exported receiver field of type *auth.Claims or
// auth.Claims. Claims are written through the existing value, replacing
// all of its properties.
func FieldTarget(name string) Target {
	return Target{kind: fieldTarget, field: name}
}

// ArgTarget names a positional argument that is replaced by the *auth.Claims.
func ArgTarget(index int) Target {
	return Target{kind: argTarget, index: index}
}

// IsZero reports whether t declares no injection.
func (t Target) IsZero() bool {
	return t.kind == noTarget
}

func (t Target) String() string {
	switch t.kind {
	case fieldTarget:
		return "field " + t.field
	case argTarget:
		return "arg " + strconv.Itoa(t.index)
	}
	return "none"
}

func (t Target) validate() error {
	switch {
	case t.kind == fieldTarget && t.field == "":
		return fmt.Errorf("%w: empty field name", ErrInvalidTarget)
	case t.kind == argTarget && t.index < 0:
		return fmt.Errorf("%w: negative argument index %d", ErrInvalidTarget, t.index)
	case t.kind == noTarget:
		return fmt.Errorf("%w: no target given", ErrInvalidTarget)
	}
	return nil
}

// Descriptor identifies one authenticated method and its injection target.
type Descriptor struct {
	Owner  string
	Method string
	Target Target
}

func (d Descriptor) name() string {
	return d.Owner + "." + d.Method
}

// Registry records which methods require authentication. Registration
// normally happens once at startup; decorated methods keep a snapshot of
// their Descriptor and never read the Registry again.
type Registry struct {
	mu      sync.RWMutex
	methods map[string]*Descriptor
	opts    []Option
}

// NewRegistry creates an empty Registry. The options are applied to every
// method it decorates.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		methods: map[string]*Descriptor{},
		opts:    opts,
	}
}

// RequireAuth records that owner.method requires authentication. Calling it
// more than once has no further effect.
func (r *Registry) RequireAuth(owner, method string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookupOrCreate(owner, method)
}

// MarkInjectionTarget records where owner.method receives its decoded claims,
// and marks the method as requiring authentication. A method has at most one
// target: a second call returns ErrTargetAlreadyDeclared.
func (r *Registry) MarkInjectionTarget(owner, method string, t Target) error {
	if err := t.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.lookupOrCreate(owner, method)
	if !d.Target.IsZero() {
		return fmt.Errorf("%w: %s injects into %s", ErrTargetAlreadyDeclared, d.name(), d.Target)
	}
	d.Target = t
	return nil
}

// Lookup returns the Descriptor for owner.method.
func (r *Registry) Lookup(owner, method string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.methods[owner+"."+method]
	if !ok {
		return Descriptor{}, false
	}
	return *d, true
}

// Decorate returns m wrapped with the authentication gate when owner.method
// was registered, and m itself otherwise.
func (r *Registry) Decorate(owner, method string, m Method) Method {
	d, ok := r.Lookup(owner, method)
	if !ok {
		return m
	}
	return Wrap(d, m, r.opts...)
}

func (r *Registry) lookupOrCreate(owner, method string) *Descriptor {
	key := owner + "." + method
	d, ok := r.methods[key]
	if !ok {
		d = &Descriptor{Owner: owner, Method: method}
		r.methods[key] = d
	}
	return d
}

// Declaration is the file form of a registration.
type Declaration struct {
	Owner  string `yaml:"owner"`
	Method string `yaml:"method"`
	Inject *struct {
		Field string `yaml:"field"`
		Arg   *int   `yaml:"arg"`
	} `yaml:"inject"`
}

// Declare registers every declaration. It stops at the first invalid one.
func (r *Registry) Declare(decls []Declaration) error {
	for _, d := range decls {
		if d.Owner == "" || d.Method == "" {
			return fmt.Errorf("declaration requires owner and method: %+v", d)
		}
		if d.Inject == nil {
			r.RequireAuth(d.Owner, d.Method)
			continue
		}
		var t Target
		switch {
		case d.Inject.Field != "" && d.Inject.Arg != nil:
			return fmt.Errorf("%w: %s.%s declares both field and arg", ErrInvalidTarget, d.Owner, d.Method)
		case d.Inject.Field != "":
			t = FieldTarget(d.Inject.Field)
		case d.Inject.Arg != nil:
			t = ArgTarget(*d.Inject.Arg)
		}
		if err := r.MarkInjectionTarget(d.Owner, d.Method, t); err != nil {
			return err
		}
	}
	return nil
}

// LoadDeclarations reads a YAML list of declarations from path.
func LoadDeclarations(path string) ([]Declaration, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read declarations: %w", err)
	}
	var decls []Declaration
	if err := yaml.UnmarshalStrict(b, &decls); err != nil {
		return nil, fmt.Errorf("failed to parse declarations: %w", err)
	}
	return decls, nil
}
