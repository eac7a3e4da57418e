// Package resolve canonicalizes business names into the keys every entity
// join in the pipeline compares on.
package resolve

import (
	"regexp"
	"strings"
	"unicode"
)

// legalSuffixes lists the legal-entity tokens removed as whole words.
var legalSuffixes = []string{
	"LLC",
	"INC", "INCORPORATED",
	"CORP", "CORPORATION",
	"CO", "COMPANY",
	"LTD",
}

var suffixSet = func() map[string]bool {
	m := make(map[string]bool, len(legalSuffixes))
	for _, s := range legalSuffixes {
		m[s] = true
	}
	return m
}()

var (
	// wordRe matches whole words over Unicode letters and digits. Go's \b is
	// ASCII-only and would split "ÉCO" before the C.
	wordRe       = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	disallowedRe = regexp.MustCompile(`[^A-Z0-9 ]+`)
	multiSpaceRe = regexp.MustCompile(` {2,}`)
)

// Canonicalize standardizes a business name for exact-key matching by:
//  1. Converting to uppercase and trimming
//  2. Removing legal suffix tokens (LLC, INC, CORP, ...) as whole words
//  3. Stripping every character outside [A-Z0-9 ]
//  4. Collapsing repeated spaces and trimming again
//
// The steps repeat until the key stops changing, so stripping punctuation
// that exposes a new suffix token ("L.L.C." -> "LLC") still converges and
// Canonicalize(Canonicalize(x)) == Canonicalize(x).
//
// An empty result is the null key. Callers must never join on it.
func Canonicalize(name string) string {
	key := canonicalPass(name)
	for key != "" {
		next := canonicalPass(key)
		if next == key {
			break
		}
		key = next
	}
	return key
}

func canonicalPass(name string) string {
	name = strings.TrimSpace(strings.ToUpper(name))
	if name == "" {
		return ""
	}

	// Tabs, newlines and non-breaking spaces separate words like a space.
	name = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, name)

	name = wordRe.ReplaceAllStringFunc(name, func(w string) string {
		if suffixSet[w] {
			return " "
		}
		return w
	})
	name = disallowedRe.ReplaceAllString(name, "")
	name = multiSpaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// CanonicalizeSQL returns a Postgres expression computing Canonicalize(col).
// The result is NULL for blank names so it never equi-joins.
//
// Two passes reach the same fixed point as Canonicalize: the first pass
// leaves only [A-Z0-9 ], so removing suffix tokens in the second one cannot
// expose new tokens.
func CanonicalizeSQL(col string) string {
	return "NULLIF(TRIM(" + canonicalPassSQL(canonicalPassSQL(col)) + "), '')"
}

// canonicalPassSQL mirrors canonicalPass. Postgres \m and \M are word
// boundaries over Unicode letters and digits.
func canonicalPassSQL(expr string) string {
	return `REGEXP_REPLACE(
    REGEXP_REPLACE(
        REGEXP_REPLACE(
            REGEXP_REPLACE(UPPER(TRIM(` + expr + `)), '\s', ' ', 'g'),
            '\m(` + strings.Join(legalSuffixes, "|") + `)\M', ' ', 'g'),
        '[^A-Z0-9 ]', '', 'g'),
    ' {2,}', ' ', 'g')`
}
