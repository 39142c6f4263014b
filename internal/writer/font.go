package writer

import (
	"errors"
	"fmt"
	"image"
	"math/rand/v2"
	"path/filepath"
	"unicode"

	"github.com/MeKo-Tech/handwriter/internal/utils"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrNoVariations is returned when a letter directory holds no images.
var ErrNoVariations = errors.New("no variations")

// ErrNoBoundingBox is returned when a used character has no bounding box.
var ErrNoBoundingBox = errors.New("no bounding box")

// UnsupportedCharError reports a character the font cannot map to a letter directory.
type UnsupportedCharError struct {
	Char rune
}

func (e *UnsupportedCharError) Error() string {
	return fmt.Sprintf("unsupported character %q", e.Char)
}

var punctuationKeys = map[rune]string{
	'.': "dot",
	',': "comma",
	':': "colon",
	';': "semicolon",
	'-': "dash",
	'"': "quoteopen",
	'!': "exclamation",
	'?': "question",
}

var lowerCaser = cases.Lower(language.Und)

// LetterKey returns the name of the ready directory holding variations of r.
func LetterKey(r rune) (string, error) {
	switch {
	case unicode.IsLower(r) || unicode.IsDigit(r):
		return string(r), nil
	case unicode.IsUpper(r):
		return "_" + lowerCaser.String(string(r)), nil
	}
	if key, ok := punctuationKeys[r]; ok {
		return key, nil
	}
	return "", &UnsupportedCharError{Char: r}
}

// Variation is one handwritten image of a character.
type Variation struct {
	Path  string
	Image *image.NRGBA
}

// Font holds the variations and bounding boxes of the characters a text uses.
type Font struct {
	variations map[rune][]Variation
	boxes      BoundingBoxes
	rng        *rand.Rand
}

// NewFont builds a font from already loaded variations. Every character must
// have at least one variation and a bounding box.
func NewFont(variations map[rune][]Variation, boxes BoundingBoxes, seed int64) (*Font, error) {
	for r, vs := range variations {
		if len(vs) == 0 {
			return nil, fmt.Errorf("letter %q: %w", r, ErrNoVariations)
		}
		if _, ok := boxes[r]; !ok {
			return nil, fmt.Errorf("letter %q: %w", r, ErrNoBoundingBox)
		}
	}
	return &Font{variations: variations, boxes: boxes, rng: newRand(seed)}, nil
}

// LoadFont loads the variations of every character in text from readyDir.
func LoadFont(readyDir string, boxes BoundingBoxes, text string, seed int64) (*Font, error) {
	variations := make(map[rune][]Variation)
	for _, r := range Letters(text) {
		key, err := LetterKey(r)
		if err != nil {
			return nil, err
		}
		dir := filepath.Join(readyDir, key)
		files, err := utils.ListFiles(dir, []string{"*.png"})
		if err != nil {
			return nil, fmt.Errorf("letter %q: %w: %w", r, ErrNoVariations, err)
		}
		for _, f := range files {
			img, _, err := utils.LoadImage(f)
			if err != nil {
				return nil, fmt.Errorf("letter %q: %w", r, err)
			}
			variations[r] = append(variations[r], Variation{Path: f, Image: utils.ToNRGBA(img)})
		}
		if len(variations[r]) == 0 {
			return nil, fmt.Errorf("letter %q in %s: %w", r, dir, ErrNoVariations)
		}
	}
	return NewFont(variations, boxes, seed)
}

// newRand returns a generator seeded with seed, or a randomly seeded one for zero.
func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // G404: not security sensitive
	}
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed))) //nolint:gosec // G404: deterministic on purpose
}

// Letter picks a random variation of r.
func (f *Font) Letter(r rune) (Variation, bool) {
	vs := f.variations[r]
	if len(vs) == 0 {
		return Variation{}, false
	}
	return vs[f.rng.IntN(len(vs))], true
}

// BoundingBox returns the bounding box of r.
func (f *Font) BoundingBox(r rune) (BoundingBox, bool) {
	b, ok := f.boxes[r]
	return b, ok
}

// Has reports whether the font can draw r.
func (f *Font) Has(r rune) bool {
	return len(f.variations[r]) > 0
}

// MaxWidth is the widest variation of r.
func (f *Font) MaxWidth(r rune) int {
	w := 0
	for _, v := range f.variations[r] {
		w = max(w, v.Image.Bounds().Dx())
	}
	return w
}

// LineHeight is the tallest variation of any loaded character.
func (f *Font) LineHeight() int {
	h := 0
	for _, vs := range f.variations {
		for _, v := range vs {
			h = max(h, v.Image.Bounds().Dy())
		}
	}
	return h
}
