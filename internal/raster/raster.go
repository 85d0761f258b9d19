// Package raster provides the read-only pixel surface the simulation samples
// for boundary detection. The core never draws; it only asks "what color is
// at (x,y)".
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
)

// ErrOutOfRange is returned when a coordinate falls outside the raster.
// The surrounding collaborator contract is supposed to make this impossible
// (the playable area is bordered with the bounds color), so callers treat it
// as a fatal precondition violation, not a recoverable condition.
var ErrOutOfRange = errors.New("raster coordinate out of range")

// Color is a plain RGBA value with exact equality.
type Color struct {
	R, G, B, A uint8
}

// ColorFromHex parses "#RRGGBB" or "#RRGGBBAA" into a Color.
// Alpha defaults to 0xFF when omitted.
func ColorFromHex(s string) (Color, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) != 6 && len(h) != 8 {
		return Color{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 64)
	if err != nil {
		return Color{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	if len(h) == 6 {
		v = v<<8 | 0xFF
	}
	return Color{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}

// String returns the color as "#RRGGBBAA".
func (c Color) String() string {
	return fmt.Sprintf("#%02X%02X%02X%02X", c.R, c.G, c.B, c.A)
}

// Raster answers pixel color queries over integer coordinates.
// Implementations are read-only from the simulation's perspective.
type Raster interface {
	// ColorAt returns the color at pixel (x,y). Coordinates outside the
	// raster return ErrOutOfRange.
	ColorAt(x, y int) (Color, error)

	// Bounds returns the raster dimensions in pixels.
	Bounds() (width, height int)
}

// Grid is an in-memory raster backed by a dense pixel slice. It is used for
// procedurally built mazes and for tests.
type Grid struct {
	width  int
	height int
	pixels []Color
}

// NewGrid creates a Grid of the given size with every pixel set to fill.
func NewGrid(width, height int, fill Color) *Grid {
	g := &Grid{
		width:  width,
		height: height,
		pixels: make([]Color, width*height),
	}
	for i := range g.pixels {
		g.pixels[i] = fill
	}
	return g
}

// Set writes a pixel. Out-of-range coordinates are ignored.
func (g *Grid) Set(x, y int, c Color) {
	if x < 0 || y < 0 || x >= g.width || y >= g.height {
		return
	}
	g.pixels[y*g.width+x] = c
}

// Border paints a frame of the given thickness around the playable area.
// The collaborator contract in the simulation requires the playable area to
// be enclosed by the bounds color, so every reachable query stays in range.
func (g *Grid) Border(thickness int, c Color) {
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			if x < thickness || y < thickness || x >= g.width-thickness || y >= g.height-thickness {
				g.pixels[y*g.width+x] = c
			}
		}
	}
}

// ColorAt implements Raster.
func (g *Grid) ColorAt(x, y int) (Color, error) {
	if x < 0 || y < 0 || x >= g.width || y >= g.height {
		return Color{}, fmt.Errorf("%w: (%d,%d) outside %dx%d", ErrOutOfRange, x, y, g.width, g.height)
	}
	return g.pixels[y*g.width+x], nil
}

// Bounds implements Raster.
func (g *Grid) Bounds() (int, int) {
	return g.width, g.height
}

// Image wraps a decoded image.Image (typically a PNG maze file) as a Raster.
type Image struct {
	img image.Image
}

// NewImage wraps img. The image's Min point is treated as pixel (0,0).
func NewImage(img image.Image) *Image {
	return &Image{img: img}
}

// ColorAt implements Raster.
func (r *Image) ColorAt(x, y int) (Color, error) {
	b := r.img.Bounds()
	px := b.Min.X + x
	py := b.Min.Y + y
	if px < b.Min.X || py < b.Min.Y || px >= b.Max.X || py >= b.Max.Y {
		return Color{}, fmt.Errorf("%w: (%d,%d) outside %dx%d", ErrOutOfRange, x, y, b.Dx(), b.Dy())
	}
	c := color.RGBAModel.Convert(r.img.At(px, py)).(color.RGBA)
	return Color{R: c.R, G: c.G, B: c.B, A: c.A}, nil
}

// Bounds implements Raster.
func (r *Image) Bounds() (int, int) {
	b := r.img.Bounds()
	return b.Dx(), b.Dy()
}
