package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseID(t *testing.T) {
	const canonical = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	for _, in := range []string{
		canonical,
		strings.ToUpper(canonical),
		" " + canonical + " ",
		"{" + canonical + "}",
		"urn:uuid:" + canonical,
		strings.ReplaceAll(canonical, "-", ""),
	} {
		got, ok := ParseID(in)
		assert.True(t, ok, in)
		assert.Equal(t, canonical, got, in)
	}

	for _, in := range []string{"", "user-1", canonical[:35]} {
		_, ok := ParseID(in)
		assert.False(t, ok, in)
	}
}

func TestParseKind(t *testing.T) {
	got, ok := ParseKind("  Story_Chapter-2 ")
	assert.True(t, ok)
	assert.Equal(t, "story_chapter-2", got)

	_, ok = ParseKind(strings.Repeat("a", MaxKindLen))
	assert.True(t, ok)

	for _, in := range []string{"", "   ", "l i k e", "story!", "émoji", strings.Repeat("a", MaxKindLen+1)} {
		_, ok := ParseKind(in)
		assert.False(t, ok, in)
	}
}
