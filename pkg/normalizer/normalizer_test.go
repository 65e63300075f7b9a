package normalizer

import (
	"errors"
	"testing"

	"ai-chatbot-be/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", "Hello", "Hello"},
		{"trim and collapse", "  hello \t  world \n", "hello world"},
		{"line breaks become spaces", "first\nsecond\r\nthird", "first second third"},
		{"zero width removed", "zero\u200bwidth\ufeff", "zerowidth"},
		{"control removed", "bell\u0007here", "bellhere"},
		{"nfkc fullwidth", "Ｈｉ", "Hi"},
		{"nfkc ligature", "ﬁle", "file"},
		{"nbsp is whitespace", "a\u00a0\u00a0b", "a b"},
		{"case kept", "Keep THIS Case", "Keep THIS Case"},
		{"thai untouched", "สวัสดี ครับ", "สวัสดี ครับ"},
		{"only whitespace", " \n\t ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	raw := "  Mixed\u200b input\n\nwith ﬁ ligature "
	first, err := Normalize(raw)
	require.NoError(t, err)

	second, err := Normalize(first)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNormalize_InvalidUTF8(t *testing.T) {
	_, err := Normalize("bad \xff\xfe bytes")
	assert.True(t, errors.Is(err, errs.ErrNormalization))

	_, err = NormalizeDocument("\xc3\x28")
	assert.True(t, errors.Is(err, errs.ErrNormalization))
}

func TestNormalizeDocument_KeepsParagraphs(t *testing.T) {
	raw := "Title  line\r\n\r\n\r\n  first   paragraph\ncontinues here\n \n\u200b\nsecond paragraph\n"

	got, err := NormalizeDocument(raw)
	require.NoError(t, err)
	assert.Equal(t, "Title line\n\nfirst paragraph continues here\n\nsecond paragraph", got)
}

func TestFold(t *testing.T) {
	assert.Equal(t, Fold("Hello World"), Fold("hello world"))
	assert.Equal(t, Fold("ÀB"), Fold("àb"))
}
