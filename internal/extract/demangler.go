package extract

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// Demangler turns mangled C++ linkage names back into scoped names.
// Non-mangled input passes through unchanged.
type Demangler interface {
	Demangle(name string) string
	// Available reports whether the demangler can run at all; checked once
	// before a scan starts.
	Available() error
}

// BuiltinDemangler demangles Itanium ABI names in-process. It is the
// default and has no external dependency.
type BuiltinDemangler struct{}

func (BuiltinDemangler) Demangle(name string) string {
	return demangle.Filter(name)
}

func (BuiltinDemangler) Available() error {
	return nil
}

// CppFiltDemangler shells out to an external c++filt binary. Useful for
// vendor toolchains whose mangling the builtin demangler does not cover.
type CppFiltDemangler struct {
	// Path is the c++filt executable, looked up in PATH when relative.
	Path string
}

func (d *CppFiltDemangler) Demangle(name string) string {
	out, err := exec.Command(d.Path, name).Output()
	if err != nil {
		return name
	}
	demangled := strings.TrimSpace(string(out))
	if demangled == "" {
		return name
	}
	return demangled
}

func (d *CppFiltDemangler) Available() error {
	if _, err := exec.LookPath(d.Path); err != nil {
		return fmt.Errorf("%w: %v", ErrDemanglerUnavailable, err)
	}
	return nil
}
