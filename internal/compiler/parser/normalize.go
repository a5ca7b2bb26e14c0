package parser

import "regexp"

// backtickPattern rewrites `some text` to "some text". Backticks are not a
// valid string delimiter in the accepted language; authors sometimes use
// them out of habit (spec §4.1 "pre-parse text normalizations").
var backtickPattern = regexp.MustCompile("`([^`\"']*)`")

// mismatchedQuotePattern heals a common author error: an opening double
// quote closed with a single quote, immediately followed by one of the
// characters that legally end an expression context. Rewriting the
// trailing `'` to `"` recovers a valid string literal without touching
// strings that legitimately contain an apostrophe followed by other
// characters.
var mismatchedQuotePattern = regexp.MustCompile(`"([^"']*)'([),\]},])`)

// Normalize applies the two pre-parse text healing passes described in
// spec §4.1, in order: backtick rewriting, then mismatched-quote healing.
func Normalize(source string) string {
	source = backtickPattern.ReplaceAllString(source, `"$1"`)
	source = mismatchedQuotePattern.ReplaceAllString(source, `"$1"$2`)
	return source
}
