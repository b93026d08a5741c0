package extract

import (
	"fmt"
	"os"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// Options controls what an extraction keeps and how it runs. The zero
// value scans everything with the builtin demangler and pointer
// dereferencing enabled.
type Options struct {
	// IgnoreCompileUnits lists compile units to skip entirely. A pattern
	// matches either the unit's source basename exactly or its recorded
	// name as a glob.
	IgnoreCompileUnits []string `yaml:"ignore_compile_units"`

	// IgnorePaths lists variable path globs to drop from the output, e.g.
	// "/global/*/internal_*".
	IgnorePaths []string `yaml:"ignore_paths"`

	// DereferencePointers enables registering the pointed-to side of
	// pointer variables. Defaults to true.
	DereferencePointers *bool `yaml:"dereference_pointers"`

	// CppFilt is the path to an external c++filt binary. Empty uses the
	// builtin demangler.
	CppFilt string `yaml:"cppfilt"`
}

// LoadOptionsFile reads options from a YAML file.
func LoadOptionsFile(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, err
	}
	var opts Options
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("cannot parse options file %s: %w", path, err)
	}
	return opts, nil
}

func (o Options) dereferencePointers() bool {
	return o.DereferencePointers == nil || *o.DereferencePointers
}

func (o Options) demangler() Demangler {
	if o.CppFilt != "" {
		return &CppFiltDemangler{Path: o.CppFilt}
	}
	return BuiltinDemangler{}
}

type ignorePattern struct {
	raw string
	g   glob.Glob
}

type filters struct {
	compileUnits []ignorePattern
	paths        []ignorePattern
}

func (o Options) compileFilters() (*filters, error) {
	f := &filters{}
	for _, p := range o.IgnoreCompileUnits {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("bad compile unit pattern %q: %w", p, err)
		}
		f.compileUnits = append(f.compileUnits, ignorePattern{raw: p, g: g})
	}
	for _, p := range o.IgnorePaths {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("bad path pattern %q: %w", p, err)
		}
		f.paths = append(f.paths, ignorePattern{raw: p, g: g})
	}
	return f, nil
}

// skipCompileUnit reports whether a unit with the given recorded name and
// source basename must be skipped.
func (f *filters) skipCompileUnit(rawName, basename string) bool {
	for _, p := range f.compileUnits {
		if basename == p.raw || p.g.Match(rawName) {
			return true
		}
	}
	return false
}

// matchedPathPattern returns the pattern a variable path matches, if any.
func (f *filters) matchedPathPattern(fullname string) (string, bool) {
	for _, p := range f.paths {
		if p.g.Match(fullname) {
			return p.raw, true
		}
	}
	return "", false
}
