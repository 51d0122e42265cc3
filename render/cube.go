// Package render implements the Renderer collaborator: a software
// rasterizer drawing the spinning six-color cube into an RGBA
// framebuffer that is presented through the window system. Rendering
// fidelity is not a goal; the renderer exists to exercise the frame
// submission path end to end.
package render

import (
	"image"
	"image/color"
	"math"
	"sort"
)

// Presenter blits a finished framebuffer to the window.
type Presenter interface {
	PresentImage(*image.RGBA) error
}

var (
	background = color.RGBA{R: 28, G: 138, B: 138, A: 255}

	// red, green, blue, cyan, magenta, yellow
	faceColors = [6]color.RGBA{
		{R: 255, A: 255},
		{G: 255, A: 255},
		{B: 255, A: 255},
		{G: 178, B: 178, A: 255},
		{R: 178, B: 178, A: 255},
		{R: 178, G: 178, A: 255},
	}

	// face basis vectors: each face is the front quad rotated by a
	// permutation matrix, one per cube side.
	faceBasis = [6][3]vec3{
		{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
		{{0, 0, 1}, {1, 0, 0}, {0, 1, 0}},
		{{0, 1, 0}, {0, 0, 1}, {1, 0, 0}},
		{{0, 1, 0}, {1, 0, 0}, {0, 0, -1}},
		{{0, 0, -1}, {0, 1, 0}, {1, 0, 0}},
		{{1, 0, 0}, {0, 0, -1}, {0, 1, 0}},
	}
)

const cubeSize = 3.0

// Cube renders the rotating cube. Rotation rates follow the original
// demo: 15, 30 and 45 degrees per second around X, Y and Z.
type Cube struct {
	presenter     Presenter
	fb            *image.RGBA
	proj          mat4
	width, height int
}

// NewCube returns a renderer presenting through p.
func NewCube(p Presenter, width, height int) *Cube {
	c := &Cube{presenter: p}
	c.Reshape(width, height)
	return c
}

// Reshape resizes the framebuffer and reconfigures the projection for
// the new aspect ratio.
func (c *Cube) Reshape(width, height int) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	c.width, c.height = width, height
	c.fb = image.NewRGBA(image.Rect(0, 0, width, height))
	h := float32(height) / float32(width)
	c.proj = frustum(-1, 1, -h, h, 5, 1e9)
}

// Bounds returns the framebuffer bounds.
func (c *Cube) Bounds() image.Rectangle { return c.fb.Bounds() }

// At returns the framebuffer pixel at (x, y).
func (c *Cube) At(x, y int) color.Color { return c.fb.At(x, y) }

type projectedFace struct {
	pts   [4][2]float32
	depth float32
	col   color.RGBA
}

// DrawFrame rasterizes the cube at the given animation time in seconds.
func (c *Cube) DrawFrame(seconds float64) {
	c.clear()

	t := float32(seconds) * 60
	model := identity()
	model = rotateX(model, radians(0.25*t))
	model = rotateY(model, radians(0.5*t))
	model = rotateZ(model, radians(0.75*t))
	view := translate(identity(), 0, 0, -32)
	mvp := mul(c.proj, mul(view, model))

	quad := [4]vec3{
		{-cubeSize, cubeSize, cubeSize},
		{-cubeSize, -cubeSize, cubeSize},
		{cubeSize, -cubeSize, cubeSize},
		{cubeSize, cubeSize, cubeSize},
	}

	var faces []projectedFace
	for i, basis := range faceBasis {
		var f projectedFace
		f.col = faceColors[i]
		visible := true
		for j, p := range quad {
			world := vec4{
				basis[0][0]*p[0] + basis[0][1]*p[1] + basis[0][2]*p[2],
				basis[1][0]*p[0] + basis[1][1]*p[1] + basis[1][2]*p[2],
				basis[2][0]*p[0] + basis[2][1]*p[1] + basis[2][2]*p[2],
				1,
			}
			clip := transform(mvp, world)
			if clip[3] <= 0 {
				visible = false
				break
			}
			f.pts[j][0] = (clip[0]/clip[3] + 1) * 0.5 * float32(c.width)
			f.pts[j][1] = (1 - clip[1]/clip[3]) * 0.5 * float32(c.height)
			f.depth += clip[3]
		}
		if !visible || !counterClockwise(f.pts) {
			continue
		}
		f.depth /= 4
		faces = append(faces, f)
	}

	// painter order, farthest first
	sort.Slice(faces, func(i, j int) bool { return faces[i].depth > faces[j].depth })
	for _, f := range faces {
		c.fillQuad(f.pts, f.col)
	}
}

// Present blits the framebuffer to the window.
func (c *Cube) Present() error {
	return c.presenter.PresentImage(c.fb)
}

func (c *Cube) clear() {
	for i := 0; i < len(c.fb.Pix); i += 4 {
		c.fb.Pix[i+0] = background.R
		c.fb.Pix[i+1] = background.G
		c.fb.Pix[i+2] = background.B
		c.fb.Pix[i+3] = background.A
	}
}

func counterClockwise(p [4][2]float32) bool {
	var area float32
	for i := 0; i < 4; i++ {
		j := (i + 1) % 4
		area += p[i][0]*p[j][1] - p[j][0]*p[i][1]
	}
	return area < 0
}

func (c *Cube) fillQuad(p [4][2]float32, col color.RGBA) {
	c.fillTriangle(p[0], p[1], p[2], col)
	c.fillTriangle(p[0], p[2], p[3], col)
}

func (c *Cube) fillTriangle(a, b, d [2]float32, col color.RGBA) {
	minX := int(math.Floor(float64(min3(a[0], b[0], d[0]))))
	maxX := int(math.Ceil(float64(max3(a[0], b[0], d[0]))))
	minY := int(math.Floor(float64(min3(a[1], b[1], d[1]))))
	maxY := int(math.Ceil(float64(max3(a[1], b[1], d[1]))))
	if minX < 0 {
		minX = 0
	}
	if minY < 0 {
		minY = 0
	}
	if maxX > c.width-1 {
		maxX = c.width - 1
	}
	if maxY > c.height-1 {
		maxY = c.height - 1
	}

	area := edge(a, b, d)
	if area == 0 {
		return
	}
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			q := [2]float32{float32(x) + 0.5, float32(y) + 0.5}
			w0 := edge(a, b, q) / area
			w1 := edge(b, d, q) / area
			w2 := edge(d, a, q) / area
			if w0 >= 0 && w1 >= 0 && w2 >= 0 {
				c.fb.SetRGBA(x, y, col)
			}
		}
	}
}

func edge(a, b, p [2]float32) float32 {
	return (b[0]-a[0])*(p[1]-a[1]) - (b[1]-a[1])*(p[0]-a[0])
}

func min3(a, b, c float32) float32 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func max3(a, b, c float32) float32 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}
