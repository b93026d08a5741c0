package extract

import (
	"debug/dwarf"
	"fmt"
)

// Vendor attributes the standard library has no names for. TI's C28x
// toolchain reuses DW_AT_MIPS_fde for linkage names; older GCC emits
// DW_AT_MIPS_linkage_name instead of the DWARF 4 attribute.
const (
	attrMIPSFDE         dwarf.Attr = 0x2001
	attrMIPSLinkageName dwarf.Attr = 0x2007
)

// node is one debug information entry with its tree links restored. The
// dwarf reader flattens the DIE tree into a sequence; the extractor walks
// parents and children, so the shape is rebuilt once up front.
type node struct {
	entry    *dwarf.Entry
	parent   *node
	children []*node
	cu       *node
	// addrSize is set on compile unit roots only.
	addrSize int
}

func (n *node) tag() dwarf.Tag {
	return n.entry.Tag
}

func (n *node) offset() dwarf.Offset {
	return n.entry.Offset
}

func (n *node) hasAttr(a dwarf.Attr) bool {
	return n.entry.Val(a) != nil
}

// name returns the DW_AT_name attribute.
func (n *node) name() (string, bool) {
	s, ok := n.entry.Val(dwarf.AttrName).(string)
	return s, ok
}

func (n *node) intAttr(a dwarf.Attr) (int64, bool) {
	v, ok := n.entry.Val(a).(int64)
	return v, ok
}

func (n *node) strAttr(a dwarf.Attr) (string, bool) {
	s, ok := n.entry.Val(a).(string)
	return s, ok
}

func (n *node) bytesAttr(a dwarf.Attr) ([]byte, bool) {
	b, ok := n.entry.Val(a).([]byte)
	return b, ok
}

func (n *node) flagAttr(a dwarf.Attr) bool {
	b, ok := n.entry.Val(a).(bool)
	return ok && b
}

// tree indexes every DIE of a file. Reference-class attributes hold
// .debug_info offsets, so an offset index resolves them in one lookup.
type tree struct {
	units    []*node
	byOffset map[dwarf.Offset]*node
}

// ref resolves a reference attribute to its target node.
func (t *tree) ref(n *node, a dwarf.Attr) (*node, bool) {
	off, ok := n.entry.Val(a).(dwarf.Offset)
	if !ok {
		return nil, false
	}
	target, ok := t.byOffset[off]
	return target, ok
}

// buildTree reads every entry of the file and rebuilds the DIE tree, one
// root per compile unit.
func buildTree(d *dwarf.Data) (*tree, error) {
	t := &tree{byOffset: make(map[dwarf.Offset]*node)}
	r := d.Reader()

	var stack []*node
	for {
		entry, err := r.Next()
		if err != nil {
			return nil, fmt.Errorf("reading debug info: %w", err)
		}
		if entry == nil {
			break
		}
		if entry.Tag == 0 {
			// End-of-children marker.
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			continue
		}

		n := &node{entry: entry}
		if len(stack) > 0 {
			n.parent = stack[len(stack)-1]
			n.parent.children = append(n.parent.children, n)
			n.cu = n.parent.cu
		} else {
			if entry.Tag != dwarf.TagCompileUnit {
				return nil, fmt.Errorf("top level entry at 0x%x is %s, expected a compile unit", entry.Offset, entry.Tag)
			}
			n.cu = n
			n.addrSize = r.AddressSize()
			t.units = append(t.units, n)
		}
		t.byOffset[entry.Offset] = n

		if entry.Children {
			stack = append(stack, n)
		}
	}
	return t, nil
}
