package extract

import (
	"debug/dwarf"
	"errors"
	"fmt"
)

// ErrNoDWARF is returned when the ELF file carries no debug information.
var ErrNoDWARF = errors.New("file has no DWARF info")

// ErrDemanglerUnavailable is returned when the configured demangler cannot
// run, typically a missing c++filt binary.
var ErrDemanglerUnavailable = errors.New("demangler cannot be used")

// DIEError represents a failure while interpreting one debug information
// entry. Parsing continues past these; they are collected so a run over a
// known-good binary can be failed on any of them.
type DIEError struct {
	// Offset is the entry's position in the .debug_info section
	Offset dwarf.Offset
	// Tag is the entry's DWARF tag
	Tag dwarf.Tag
	// Name is the entry's name if one was readable
	Name string
	// Underlying error if any
	Err error
}

func (e *DIEError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("entry %s %q at 0x%x: %v", e.Tag, e.Name, e.Offset, e.Err)
	}
	return fmt.Sprintf("entry %s at 0x%x: %v", e.Tag, e.Offset, e.Err)
}

func (e *DIEError) Unwrap() error {
	return e.Err
}

// ParseErrors accumulates the failures encountered during an extraction.
// A failing entry only loses the variables under it, so the scan keeps
// going and the caller decides afterwards how strict to be.
type ParseErrors struct {
	errs []error
}

// Add records one failure.
func (p *ParseErrors) Add(err error) {
	p.errs = append(p.errs, err)
}

// Count returns the number of recorded failures.
func (p *ParseErrors) Count() int {
	return len(p.errs)
}

// All returns the recorded failures in occurrence order.
func (p *ParseErrors) All() []error {
	return p.errs
}

// First returns the first recorded failure, or nil when there were none.
func (p *ParseErrors) First() error {
	if len(p.errs) == 0 {
		return nil
	}
	return p.errs[0]
}
