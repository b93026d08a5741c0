package varmodel

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// segmentPattern splits one path segment into its dereference marker, its
// name, and its trailing index groups.
var segmentPattern = regexp.MustCompile(`^(\*?)(.+?)((\[\d+\])*)$`)

// Segment is one element of a variable path: a name, optional concrete
// array indices, and an optional dereference marker.
type Segment struct {
	Name    string
	Indices []int
	// Deref marks a pointer dereference: this segment names a pointer and
	// everything after it lives in the pointed-to memory.
	Deref bool
}

// Raw renders the segment with its dereference marker but without indices.
// Registry keys are built from raw segments, so a dereferenced entry stays
// distinguishable from a plain one.
func (s Segment) Raw() string {
	if s.Deref {
		return "*" + s.Name
	}
	return s.Name
}

// String renders the full form including indices.
func (s Segment) String() string {
	var b strings.Builder
	b.WriteString(s.Raw())
	for _, i := range s.Indices {
		fmt.Fprintf(&b, "[%d]", i)
	}
	return b.String()
}

// Path is a slash-separated variable path such as
// /global/main.cpp/buffers/rows[3][4]/cells[2]. Empty segments between
// separators are ignored, so /a//b and /a/b name the same variable.
type Path struct {
	segments []Segment
}

// ParsePath parses a path string. At most one segment may carry a
// dereference marker; a second one means a pointer reached through a
// pointer, which the registry cannot represent.
func ParsePath(s string) (*Path, error) {
	parts := strings.Split(s, "/")
	p := &Path{}
	derefSeen := false
	for _, part := range parts {
		if part == "" {
			continue
		}
		m := segmentPattern.FindStringSubmatch(part)
		if m == nil {
			return nil, fmt.Errorf("malformed path segment %q in %q", part, s)
		}
		seg := Segment{Name: m[2], Deref: m[1] == "*"}
		if seg.Deref {
			if derefSeen {
				return nil, fmt.Errorf("%w: %q has more than one dereference", ErrUnsupportedIndirection, s)
			}
			derefSeen = true
		}
		if m[3] != "" {
			for _, idx := range strings.Split(strings.Trim(m[3], "[]"), "][") {
				n, err := strconv.Atoi(idx)
				if err != nil {
					return nil, fmt.Errorf("bad index in path segment %q: %w", part, err)
				}
				seg.Indices = append(seg.Indices, n)
			}
		}
		p.segments = append(p.segments, seg)
	}
	if len(p.segments) == 0 {
		return nil, fmt.Errorf("empty path %q", s)
	}
	return p, nil
}

// MakePath builds a path from plain name segments, no indices or markers.
func MakePath(names ...string) *Path {
	p := &Path{segments: make([]Segment, 0, len(names))}
	for _, n := range names {
		p.segments = append(p.segments, Segment{Name: n})
	}
	return p
}

// JoinSegments renders raw segment strings into canonical path form.
func JoinSegments(raw []string) string {
	return "/" + strings.Join(raw, "/")
}

// Segments returns the bare segment names, indices and markers stripped.
func (p *Path) Segments() []string {
	out := make([]string, len(p.segments))
	for i, s := range p.segments {
		out[i] = s.Name
	}
	return out
}

// RawSegments returns the segment names with dereference markers kept and
// indices stripped. This is the form registry keys are built from.
func (p *Path) RawSegments() []string {
	out := make([]string, len(p.segments))
	for i, s := range p.segments {
		out[i] = s.Raw()
	}
	return out
}

// NumSegments returns the segment count.
func (p *Path) NumSegments() int {
	return len(p.segments)
}

// Segment returns the i-th segment.
func (p *Path) Segment(i int) Segment {
	return p.segments[i]
}

// DerefIndex returns the index of the dereferencing segment, or -1 when the
// path contains none.
func (p *Path) DerefIndex() int {
	for i, s := range p.segments {
		if s.Deref {
			return i
		}
	}
	return -1
}

// HasDeref reports whether the path crosses a pointer dereference.
func (p *Path) HasDeref() bool {
	return p.DerefIndex() >= 0
}

// String renders the canonical full form, indices included.
func (p *Path) String() string {
	parts := make([]string, len(p.segments))
	for i, s := range p.segments {
		parts[i] = s.String()
	}
	return JoinSegments(parts)
}

// RawString renders the canonical raw form, indices stripped.
func (p *Path) RawString() string {
	return JoinSegments(p.RawSegments())
}

// ArrayPositions collects the concrete indices of every indexed segment
// past the first skip segments, keyed by the raw subpath ending at that
// segment.
func (p *Path) ArrayPositions(skip int) map[string][]int {
	out := make(map[string][]int)
	raw := p.RawSegments()
	for i, s := range p.segments {
		if i < skip || len(s.Indices) == 0 {
			continue
		}
		out[JoinSegments(raw[:i+1])] = s.Indices
	}
	return out
}

// ComputeAddressOffset turns the concrete indices of the path into a byte
// offset, using the array definitions registered per raw subpath. The first
// ignoreLeading segments are skipped, so callers can drop the part of the
// path that precedes the base whose address the offset is relative to. The
// path's indexed segments must match the array definitions one for one:
// every definition indexed, every indexed segment defined.
func (p *Path) ComputeAddressOffset(arrays map[string]*Array, ignoreLeading int) (int, error) {
	positions := p.ArrayPositions(ignoreLeading)
	if len(positions) != len(arrays) {
		return 0, fmt.Errorf("%w: path %q indexes %d array nodes, definition has %d",
			ErrArrayCountMismatch, p, len(positions), len(arrays))
	}

	offset := 0
	for key, arr := range arrays {
		pos, ok := positions[key]
		if !ok {
			return 0, fmt.Errorf("%w: path %q does not index array node %q", ErrArrayCountMismatch, p, key)
		}
		n, err := arr.BytePositionOf(pos)
		if err != nil {
			return 0, fmt.Errorf("at %q: %w", key, err)
		}
		offset += n
	}
	return offset, nil
}

// ResolvePointerPath fixes the indices of this pointer path from the
// matching leading segments of a concrete variable path: the concrete path
// is truncated to the pointer path's length, the dereference marker is
// stripped from the last segment so the result names the pointer variable
// itself, and the pointer-side indices are validated against the array
// definitions of the pointer part.
func (p *Path) ResolvePointerPath(concrete *Path, pointerArrays map[string]*Array) (*Path, error) {
	if len(p.segments) > len(concrete.segments) {
		return nil, fmt.Errorf("%w: %q is longer than %q", ErrNotASubpath, p, concrete)
	}
	out := &Path{segments: make([]Segment, len(p.segments))}
	for i, s := range p.segments {
		c := concrete.segments[i]
		if c.Name != s.Name {
			return nil, fmt.Errorf("%w: %q diverges from %q at segment %d", ErrNotASubpath, p, concrete, i)
		}
		c.Indices = append([]int(nil), c.Indices...)
		out.segments[i] = c
	}
	out.segments[len(out.segments)-1].Deref = false

	if _, err := out.ComputeAddressOffset(pointerArrays, 0); err != nil {
		return nil, err
	}
	return out, nil
}

// Copy returns an independent copy of the path.
func (p *Path) Copy() *Path {
	out := &Path{segments: make([]Segment, len(p.segments))}
	for i, s := range p.segments {
		s.Indices = append([]int(nil), s.Indices...)
		out.segments[i] = s
	}
	return out
}
