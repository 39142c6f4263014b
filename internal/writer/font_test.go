package writer

import (
	"image"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/handwriter/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLetterKey(t *testing.T) {
	tests := []struct {
		char rune
		want string
	}{
		{'a', "a"},
		{'z', "z"},
		{'7', "7"},
		{'A', "_a"},
		{'Ж', "_ж"},
		{'ж', "ж"},
		{'.', "dot"},
		{',', "comma"},
		{':', "colon"},
		{';', "semicolon"},
		{'-', "dash"},
		{'"', "quoteopen"},
		{'!', "exclamation"},
		{'?', "question"},
	}
	for _, tt := range tests {
		t.Run(string(tt.char), func(t *testing.T) {
			got, err := LetterKey(tt.char)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLetterKey_Unsupported(t *testing.T) {
	for _, r := range []rune{'@', '#', '\t', '('} {
		_, err := LetterKey(r)
		var uce *UnsupportedCharError
		require.ErrorAs(t, err, &uce)
		assert.Equal(t, r, uce.Char)
	}
}

func TestLoadFont(t *testing.T) {
	root := t.TempDir()
	ready, boxesPath := testutil.WriteSimpleFont(t, root)
	boxes, err := LoadBoundingBoxes(boxesPath)
	require.NoError(t, err)

	font, err := LoadFont(ready, boxes, "ab A.", 1)
	require.NoError(t, err)
	assert.True(t, font.Has('a'))
	assert.True(t, font.Has('A'))
	assert.True(t, font.Has('.'))
	assert.False(t, font.Has('c'))
	assert.Equal(t, 40, font.LineHeight())
	assert.Equal(t, 22, font.MaxWidth('a'))
	assert.Equal(t, 0, font.MaxWidth('c'))

	v, ok := font.Letter('b')
	require.True(t, ok)
	assert.Equal(t, filepath.Join(ready, "b", "1.png"), v.Path)

	_, ok = font.Letter('c')
	assert.False(t, ok)
}

func TestLoadFont_OnlyUsedLetters(t *testing.T) {
	root := t.TempDir()
	ready, boxesPath := testutil.WriteSimpleFont(t, root)
	boxes, err := LoadBoundingBoxes(boxesPath)
	require.NoError(t, err)

	font, err := LoadFont(ready, boxes, "a", 1)
	require.NoError(t, err)
	assert.Equal(t, 30, font.LineHeight(), "uppercase A is not loaded")
}

func TestLoadFont_Errors(t *testing.T) {
	root := t.TempDir()
	ready, boxesPath := testutil.WriteSimpleFont(t, root)
	boxes, err := LoadBoundingBoxes(boxesPath)
	require.NoError(t, err)

	_, err = LoadFont(ready, boxes, "c", 1)
	require.ErrorIs(t, err, ErrNoVariations)

	require.NoError(t, testutil.EnsureDir(filepath.Join(ready, "c")))
	_, err = LoadFont(ready, boxes, "c", 1)
	require.ErrorIs(t, err, ErrNoVariations)

	testutil.WriteFont(t, ready, map[string][]image.Image{"d": {testutil.SolidGlyph(5, 5)}})
	_, err = LoadFont(ready, boxes, "d", 1)
	require.ErrorIs(t, err, ErrNoBoundingBox)

	_, err = LoadFont(ready, boxes, "a@", 1)
	var uce *UnsupportedCharError
	require.ErrorAs(t, err, &uce)

	testutil.WriteFile(t, filepath.Join(ready, "b", "2.png"), []byte("garbage"))
	_, err = LoadFont(ready, boxes, "b", 1)
	require.Error(t, err)
}

func TestFont_LetterSeeded(t *testing.T) {
	variations := map[rune][]Variation{'a': {
		{Path: "1", Image: testutil.SolidGlyph(1, 1)},
		{Path: "2", Image: testutil.SolidGlyph(2, 1)},
		{Path: "3", Image: testutil.SolidGlyph(3, 1)},
	}}
	boxes := BoundingBoxes{'a': {EndX: 1, BaselineY: 1}}

	pick := func(seed int64) []string {
		font, err := NewFont(variations, boxes, seed)
		require.NoError(t, err)
		var out []string
		for range 20 {
			v, _ := font.Letter('a')
			out = append(out, v.Path)
		}
		return out
	}
	assert.Equal(t, pick(42), pick(42))
}

func TestNewFont_Errors(t *testing.T) {
	_, err := NewFont(map[rune][]Variation{'a': nil}, BoundingBoxes{'a': {}}, 1)
	require.ErrorIs(t, err, ErrNoVariations)

	_, err = NewFont(map[rune][]Variation{'a': {{Image: testutil.SolidGlyph(1, 1)}}}, BoundingBoxes{}, 1)
	require.ErrorIs(t, err, ErrNoBoundingBox)
}
