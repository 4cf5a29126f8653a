package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "hello", SanitizeUTF8("hello"))
	assert.Equal(t, "héllo", SanitizeUTF8("héllo"))
	assert.Equal(t, "hello", SanitizeUTF8("he\xffllo"))
	assert.Equal(t, "", SanitizeUTF8("\xff\xfe"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 100))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	assert.Equal(t, "abcdef", Truncate("abcdef", 0))

	// Never cuts through a multi-byte rune.
	got := Truncate("héllo", 2)
	assert.Equal(t, "h...", got)
}
