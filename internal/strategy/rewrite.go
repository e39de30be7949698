package strategy

import (
	"regexp"
	"strings"
)

// Line rewriters for the type-error fix family. Each is a pure
// function from one source line to a decision: the rewritten line and
// true, or the input untouched and false (a decline). File IO lives in
// TypeErrorStrategy; keeping the rewriters pure makes every policy
// testable against literal before/after pairs.

var (
	implicitParamRe = regexp.MustCompile(`Parameter '(\w+)' implicitly`)
	propertyRe      = regexp.MustCompile(`(\w+)\.(\w+)`)
	applyCallRe     = regexp.MustCompile(`\.apply\(([^,)]+),\s*([^)]+)\)`)
)

// ParamFromMessage extracts the offending parameter name from a TS7006
// diagnostic message.
func ParamFromMessage(message string) (string, bool) {
	m := implicitParamRe.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// RewriteSharedImport corrects the relative prefix of an import of the
// known shared library. depth is the number of directories between the
// source root and the file; the correct specifier climbs exactly that
// many levels. Declines when the line does not import the library, when
// depth is not positive, or when the specifier is already correct.
func RewriteSharedImport(line, library string, depth int) (string, bool) {
	if depth <= 0 || !strings.Contains(line, library) {
		return line, false
	}

	specRe := regexp.MustCompile(`(from\s+)(['"])((?:\.\./|\./)*)` + regexp.QuoteMeta(library))
	m := specRe.FindStringSubmatch(line)
	if m == nil {
		return line, false
	}

	prefix := strings.Repeat("../", depth)
	updated := specRe.ReplaceAllString(line, "${1}${2}"+prefix+library)
	if updated == line {
		return line, false
	}
	return updated, true
}

// RewriteImplicitAny annotates the first occurrence of the parameter
// with a broad type. Declines when the parameter does not appear or is
// already annotated anywhere on the line.
func RewriteImplicitAny(line, param string) (string, bool) {
	wordRe := regexp.MustCompile(`\b` + regexp.QuoteMeta(param) + `\b`)
	locs := wordRe.FindAllStringIndex(line, -1)
	if locs == nil {
		return line, false
	}
	for _, loc := range locs {
		rest := strings.TrimLeft(line[loc[1]:], " \t")
		if strings.HasPrefix(rest, ":") {
			return line, false // already annotated
		}
	}
	loc := locs[0]
	return line[:loc[1]] + ": any" + line[loc[1]:], true
}

// RewritePropertyAssertion wraps the first object-dot-property access
// in a type assertion, silencing an unknown-property diagnostic. This
// is an escape hatch, not a semantic fix. Declines when an assertion is
// already present or no such access appears on the line.
func RewritePropertyAssertion(line string) (string, bool) {
	if strings.Contains(line, "as any") {
		return line, false
	}
	loc := propertyRe.FindStringSubmatchIndex(line)
	if loc == nil {
		return line, false
	}

	obj := line[loc[2]:loc[3]]
	prop := line[loc[4]:loc[5]]
	return line[:loc[0]] + "(" + obj + " as any)." + prop + line[loc[1]:], true
}

// RewriteApplyAssertion appends a type assertion to the second argument
// of an .apply(a, b) call. Declines for any other call shape or when an
// assertion is already present.
func RewriteApplyAssertion(line string) (string, bool) {
	if strings.Contains(line, "as any") {
		return line, false
	}
	loc := applyCallRe.FindStringSubmatchIndex(line)
	if loc == nil {
		return line, false
	}

	first := line[loc[2]:loc[3]]
	second := line[loc[4]:loc[5]]
	return line[:loc[0]] + ".apply(" + first + ", " + second + " as any)" + line[loc[1]:], true
}
