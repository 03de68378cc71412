// Package issueref finds issue keys in free-form chat text.
package issueref

import (
	"errors"
	"regexp"
	"sort"
	"strings"
)

var (
	// ErrEmptyIdentifier is returned when the command argument is empty.
	ErrEmptyIdentifier = errors.New("empty identifier")

	// ErrMalformedIdentifier is returned when the text holds nothing that
	// looks like an issue key.
	ErrMalformedIdentifier = errors.New("malformed identifier")
)

// keyPatterns are tried in order. Both capture (letters, digits).
var keyPatterns = []*regexp.Regexp{
	// proj-123
	regexp.MustCompile(`(\p{L}+)-(\d+)`),
	// proj123
	regexp.MustCompile(`(\p{L}+)(\d+)`),
}

// Reference is a normalized issue key.
type Reference struct {
	Prefix string
	Number string
}

// String renders the reference as PREFIX-NUMBER.
func (r Reference) String() string {
	return r.Prefix + "-" + r.Number
}

// match is a pattern hit located in the scanned text.
type match struct {
	ref     Reference
	offset  int
	pattern int
}

// Extract returns the issue key mentioned in body. candidate is the
// command argument the user typed; it only gates the scan, which always
// covers the whole body.
//
// When body holds several distinct keys the leftmost one wins. A hit of the
// hyphenated pattern beats an unhyphenated one starting at the same offset.
func Extract(body, candidate string) (Reference, error) {
	if candidate == "" {
		return Reference{}, ErrEmptyIdentifier
	}

	refs := All(body)
	if len(refs) == 0 {
		return Reference{}, ErrMalformedIdentifier
	}

	return refs[0], nil
}

// All returns every distinct issue key in text, ordered by first
// appearance.
func All(text string) []Reference {
	var matches []match
	for i, re := range keyPatterns {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			matches = append(matches, match{
				ref: Reference{
					Prefix: strings.ToUpper(text[loc[2]:loc[3]]),
					Number: text[loc[4]:loc[5]],
				},
				offset:  loc[0],
				pattern: i,
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].offset != matches[j].offset {
			return matches[i].offset < matches[j].offset
		}
		return matches[i].pattern < matches[j].pattern
	})

	seen := make(map[Reference]bool)
	var result []Reference
	for _, m := range matches {
		if seen[m.ref] {
			continue
		}
		seen[m.ref] = true
		result = append(result, m.ref)
	}
	return result
}
