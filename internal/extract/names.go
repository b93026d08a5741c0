package extract

import "strings"

// SplitScopedName turns a C++ scoped name into path segments:
//
//	namespace1::class2<T>::enum3::HELLO -> [namespace1 class2<T> enum3 HELLO]
//
// Separators inside template or parameter brackets belong to the segment, so
// the split only applies at bracket depth zero. Both () and <> regions are
// tracked since demangled names can carry either.
func SplitScopedName(name string) []string {
	const sep = ';'

	parenDepth := 0
	angleDepth := 0
	inBracket := false
	bracketEnter := 0
	bracketExit := 0

	var b strings.Builder
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '(':
			parenDepth++
		case ')':
			parenDepth--
		case '<':
			angleDepth++
		case '>':
			angleDepth--
		}
		wasInBracket := inBracket
		inBracket = parenDepth > 0 || angleDepth > 0

		if !wasInBracket && inBracket {
			bracketEnter = i
			b.WriteString(strings.ReplaceAll(name[bracketExit:i], "::", string(sep)))
		}
		if wasInBracket && !inBracket {
			bracketExit = i
			b.WriteString(name[bracketEnter:i])
		}
	}
	b.WriteString(strings.ReplaceAll(name[bracketExit:], "::", string(sep)))

	return strings.Split(b.String(), string(sep))
}

// stripInternalSegments drops the compiler-generated anonymized scope
// segments the Tasking compiler inserts for file statics, such as
// _INTERNAL_9_file1_cpp_49335e60.
func stripInternalSegments(parts []string) []string {
	out := parts[:0]
	for _, p := range parts {
		if strings.HasPrefix(p, "_INTERNAL_") {
			continue
		}
		out = append(out, p)
	}
	return out
}
