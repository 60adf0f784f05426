// Package canvas is a freehand drawing surface. It keeps only the current
// raster (no stroke history) and pushes a PNG snapshot to its owner after
// every drawn segment.
package canvas

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"
)

const (
	DefaultWidth  = 400
	DefaultHeight = 400
	LineWidth     = 5
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Canvas struct {
	mu      sync.Mutex
	img     *image.RGBA
	active  bool
	drawing bool
	last    Point
	stroke  color.RGBA
	radius  float64
	onSnap  func([]byte)
}

func New(width, height int) *Canvas {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	c := &Canvas{
		img:    image.NewRGBA(image.Rect(0, 0, width, height)),
		stroke: color.RGBA{A: 0xff},
		radius: LineWidth / 2.0,
	}
	c.fill(color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
	return c
}

// OnSnapshot registers the owner callback that receives PNG bytes.
func (c *Canvas) OnSnapshot(fn func([]byte)) {
	c.mu.Lock()
	c.onSnap = fn
	c.mu.Unlock()
}

// Activate clears the canvas and starts accepting input.
func (c *Canvas) Activate() {
	c.mu.Lock()
	c.active = true
	c.drawing = false
	c.fill(color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
	snap, fn := c.encodeLocked(), c.onSnap
	c.mu.Unlock()
	if fn != nil && snap != nil {
		fn(snap)
	}
}

func (c *Canvas) Deactivate() {
	c.mu.Lock()
	c.active = false
	c.drawing = false
	c.mu.Unlock()
}

// Disabled reports whether input is currently rejected.
func (c *Canvas) Disabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.active
}

func (c *Canvas) BeginStroke(p Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	c.drawing = true
	c.last = c.clamp(p)
}

// ExtendStroke draws from the previous point to p and pushes a snapshot.
func (c *Canvas) ExtendStroke(p Point) {
	c.mu.Lock()
	if !c.active || !c.drawing {
		c.mu.Unlock()
		return
	}
	p = c.clamp(p)
	c.segment(c.last, p)
	c.last = p
	snap, fn := c.encodeLocked(), c.onSnap
	c.mu.Unlock()
	if fn != nil && snap != nil {
		fn(snap)
	}
}

func (c *Canvas) EndStroke() {
	c.mu.Lock()
	c.drawing = false
	c.mu.Unlock()
}

// Snapshot returns the current raster as PNG.
func (c *Canvas) Snapshot() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.encodeLocked()
}

// At reports the colour of a single pixel.
func (c *Canvas) At(x, y int) color.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.img.RGBAAt(x, y)
}

func (c *Canvas) fill(col color.RGBA) {
	b := c.img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c.img.SetRGBA(x, y, col)
		}
	}
}

func (c *Canvas) clamp(p Point) Point {
	b := c.img.Bounds()
	p.X = math.Max(0, math.Min(p.X, float64(b.Max.X-1)))
	p.Y = math.Max(0, math.Min(p.Y, float64(b.Max.Y-1)))
	return p
}

// segment stamps round dots along a-b, which gives round caps and joins.
func (c *Canvas) segment(a, b Point) {
	dist := math.Hypot(b.X-a.X, b.Y-a.Y)
	steps := int(math.Ceil(dist))
	if steps == 0 {
		c.dot(a)
		return
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		c.dot(Point{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t})
	}
}

func (c *Canvas) dot(p Point) {
	r := c.radius
	bounds := c.img.Bounds()
	for y := int(math.Floor(p.Y - r)); y <= int(math.Ceil(p.Y+r)); y++ {
		for x := int(math.Floor(p.X - r)); x <= int(math.Ceil(p.X+r)); x++ {
			if !(image.Point{X: x, Y: y}).In(bounds) {
				continue
			}
			dx, dy := float64(x)-p.X, float64(y)-p.Y
			if dx*dx+dy*dy <= r*r {
				c.img.SetRGBA(x, y, c.stroke)
			}
		}
	}
}

func (c *Canvas) encodeLocked() []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, c.img); err != nil {
		return nil
	}
	return buf.Bytes()
}
