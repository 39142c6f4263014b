package writer

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"log/slog"

	"github.com/MeKo-Tech/handwriter/internal/config"
	"github.com/MeKo-Tech/handwriter/internal/utils"
)

// ErrNothingToDraw is returned for text without any drawable character.
var ErrNothingToDraw = errors.New("nothing to draw")

var (
	inkColor      = color.NRGBA{A: 255}
	baselineColor = color.NRGBA{R: 255, A: 255}
	boxColor      = color.NRGBA{B: 255, A: 255}
)

// Options control text layout.
type Options struct {
	Debug               bool
	Connect             bool
	StartX              int
	StartY              int
	SpaceWidth          int
	CanvasMargin        int
	ConnectionThickness int
	Logger              *slog.Logger
}

// DefaultOptions returns the layout used by the writer command.
func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultConfig().Writer)
}

// OptionsFromConfig maps the writer configuration onto layout options.
func OptionsFromConfig(cfg config.WriterConfig) Options {
	return Options{
		Debug:               cfg.Debug,
		Connect:             cfg.Connect,
		StartX:              cfg.StartX,
		StartY:              cfg.StartY,
		SpaceWidth:          cfg.SpaceWidth,
		CanvasMargin:        cfg.CanvasMargin,
		ConnectionThickness: cfg.ConnectionThickness,
	}
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// CanvasSize estimates a canvas large enough for text written with font.
func CanvasSize(font *Font, text string, opts Options) image.Point {
	lines := Lines(text)
	width := 0
	for _, line := range lines {
		w := 0
		for _, r := range line {
			if r != ' ' {
				w += font.MaxWidth(r)
			}
		}
		width = max(width, w)
	}
	return image.Pt(width+opts.CanvasMargin, font.LineHeight()*len(lines)*2+opts.CanvasMargin)
}

type cursor struct {
	x, y     int
	baseline int
	hasBase  bool
	// Absolute canvas point the next connection starts from.
	link *image.Point
}

// Draw lays out text on a fresh canvas without cropping it.
func Draw(font *Font, text string, opts Options) (*image.NRGBA, error) {
	size := CanvasSize(font, text, opts)
	canvas := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	bg := color.NRGBA{R: 255, G: 255, B: 255}
	if opts.Debug {
		bg.A = 255
	}
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	c := &cursor{x: opts.StartX, y: opts.StartY}
	for i, r := range []rune(text) {
		switch r {
		case ' ':
			c.x += opts.SpaceWidth
			c.link = nil
			continue
		case '\n':
			c.x = opts.StartX
			c.y += font.LineHeight()
			c.hasBase = false
			c.link = nil
			continue
		}
		if err := drawLetter(canvas, font, c, r, i, opts); err != nil {
			return nil, err
		}
	}
	return canvas, nil
}

func drawLetter(canvas *image.NRGBA, font *Font, c *cursor, r rune, index int, opts Options) error {
	v, ok := font.Letter(r)
	if !ok {
		return &UnsupportedCharError{Char: r}
	}
	bbox, ok := font.BoundingBox(r)
	if !ok {
		return ErrNoBoundingBox
	}
	letter := v.Image
	w, h := letter.Bounds().Dx(), letter.Bounds().Dy()

	startX := int(float64(c.x) - bbox.StartX*float64(w))
	if !c.hasBase {
		c.baseline = int(float64(c.y) + bbox.BaselineY*float64(h))
		c.hasBase = true
	}
	startY := int(float64(c.baseline) - float64(h)*bbox.BaselineY)
	origin := image.Pt(startX, startY)

	draw.Draw(canvas, image.Rectangle{Min: origin, Max: origin.Add(image.Pt(w, h))}, letter, letter.Bounds().Min, draw.Over)

	if opts.Connect {
		connect(canvas, c, r, letter, bbox, origin, opts)
	}
	if opts.Debug {
		drawDebugLines(canvas, index, w, h, bbox, origin)
	}

	c.x += int(float64(w) * (bbox.EndX - bbox.StartX))
	return nil
}

func connect(canvas *image.NRGBA, c *cursor, r rune, letter *image.NRGBA, bbox BoundingBox, origin image.Point, opts Options) {
	log := opts.logger()

	end, found, err := ConnectionEnd(r, letter, bbox)
	if err != nil {
		log.Debug("connection chain broken", "error", err)
		c.link = nil
		return
	}
	if !found {
		log.Warn("no connection point found, using middle of letter", "char", string(r), "side", "left")
	}
	if c.link != nil {
		utils.DrawLine(canvas, *c.link, origin.Add(end), inkColor, opts.ConnectionThickness)
	}

	start, found, err := ConnectionStart(r, letter)
	if err != nil {
		c.link = nil
		return
	}
	if !found {
		log.Warn("no connection point found, using middle of letter", "char", string(r), "side", "right")
	}
	p := origin.Add(start)
	c.link = &p
}

func drawDebugLines(canvas *image.NRGBA, index, w, h int, bbox BoundingBox, origin image.Point) {
	endX := origin.X + int(float64(w)*bbox.EndX)
	endY := origin.Y + h
	if index == 0 {
		utils.DrawLine(canvas, image.Pt(0, endY), image.Pt(canvas.Bounds().Dx(), endY), baselineColor, 1)
	}
	utils.DrawLine(canvas, image.Pt(endX, endY), image.Pt(endX, endY-h), baselineColor, 1)
	utils.DrawLine(canvas, image.Pt(origin.X, endY), image.Pt(origin.X, endY-h), boxColor, 1)
	utils.DrawLine(canvas, image.Pt(origin.X, endY), image.Pt(endX, endY), boxColor, 1)
}

// Render draws text and crops the result to its visible pixels.
func Render(font *Font, text string, opts Options) (*image.NRGBA, error) {
	if len(Letters(text)) == 0 {
		return nil, ErrNothingToDraw
	}
	canvas, err := Draw(font, text, opts)
	if err != nil {
		return nil, err
	}
	rect, ok := utils.AlphaBounds(canvas)
	if !ok {
		return nil, ErrNothingToDraw
	}
	return utils.CropImageRect(canvas, rect), nil
}
