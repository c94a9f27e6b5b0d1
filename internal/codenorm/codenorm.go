// Package codenorm canonicalizes source-code snippets into comparable
// structural fingerprints.
//
// Normalization replaces literals and declared identifiers with fixed
// placeholders and collapses whitespace, so that two snippets that differ
// only in strings, numbers, or variable names normalize to the same text.
// The result is a fingerprint for similarity comparison, not a
// semantics-preserving transform.
package codenorm

import (
	"regexp"
	"strconv"
	"strings"
)

// Placeholders substituted during normalization.
const (
	StringPlaceholder = "<STRING>"
	NumberPlaceholder = "<NUMBER>"
	VarPlaceholder    = "<VAR>"
)

var (
	// String literals: single, double, and backtick quoted. Escaped quotes
	// inside single/double strings are honored; backtick strings are matched
	// verbatim up to the next backtick.
	singleQuoted = regexp.MustCompile(`'(?:[^'\\]|\\.)*'`)
	doubleQuoted = regexp.MustCompile(`"(?:[^"\\]|\\.)*"`)
	backQuoted   = regexp.MustCompile("`[^`]*`")

	// Variable declarations: the declared identifier is replaced, the keyword kept.
	varDecl = regexp.MustCompile(`\b(const|let|var)\s+([A-Za-z_$][A-Za-z0-9_$]*)`)

	// Numeric literals, integer or decimal.
	numberLit = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)

	whitespace = regexp.MustCompile(`\s+`)

	// Token boundaries: whitespace plus structural punctuation.
	tokenSplit = regexp.MustCompile(`[\s.,;:(){}\[\]<>]+`)
)

// Normalize canonicalizes a snippet: string literals become <STRING>, numeric
// literals become <NUMBER>, declared variable names become <VAR>, and all
// whitespace runs collapse to a single space. Idempotent: normalizing an
// already-normalized snippet is a no-op.
func Normalize(code string) string {
	out := singleQuoted.ReplaceAllString(code, StringPlaceholder)
	out = doubleQuoted.ReplaceAllString(out, StringPlaceholder)
	out = backQuoted.ReplaceAllString(out, StringPlaceholder)
	out = varDecl.ReplaceAllString(out, "$1 "+VarPlaceholder)
	out = numberLit.ReplaceAllString(out, NumberPlaceholder)
	out = whitespace.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// HashCode computes a djb2 hash of s and renders it as lowercase hex. Used
// for bucketing and deduplication keys only; not a cryptographic hash.
func HashCode(s string) string {
	h := uint32(5381)
	for _, r := range s {
		h = h*33 + uint32(r)
	}
	return strconv.FormatUint(uint64(h), 16)
}

// Tokenize splits s on whitespace and structural punctuation and returns the
// resulting token set. Duplicates collapse; order is irrelevant.
func Tokenize(s string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, tok := range tokenSplit.Split(s, -1) {
		if tok != "" {
			tokens[tok] = struct{}{}
		}
	}
	return tokens
}

// CountLines returns the number of newline-delimited lines in s, or 0 for
// empty input.
func CountLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}
