package x11

import (
	"fmt"
	"image"

	"github.com/jezek/xgb/xproto"
)

// putImageChunkBytes keeps each PutImage request safely under the core
// protocol's maximum request length (65535 four-byte units).
const putImageChunkBytes = 240_000

// PresentImage blits the framebuffer to the window. Rows are written in
// strips so a full-size frame never exceeds the request length limit.
func (c *Conn) PresentImage(img *image.RGBA) error {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return nil
	}

	// ZPixmap depth-24 data is 32 bits per pixel, B,G,R,X byte order.
	stride := width * 4
	data := make([]byte, stride*height)
	for y := 0; y < height; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+stride]
		dst := data[y*stride:]
		for x := 0; x < width; x++ {
			dst[x*4+0] = src[x*4+2]
			dst[x*4+1] = src[x*4+1]
			dst[x*4+2] = src[x*4+0]
			dst[x*4+3] = 0
		}
	}

	rowsPerChunk := putImageChunkBytes / stride
	if rowsPerChunk < 1 {
		rowsPerChunk = 1
	}
	for y := 0; y < height; y += rowsPerChunk {
		rows := rowsPerChunk
		if y+rows > height {
			rows = height - y
		}
		chunk := data[y*stride : (y+rows)*stride]
		err := xproto.PutImageChecked(c.x, xproto.ImageFormatZPixmap,
			xproto.Drawable(c.window), c.gc,
			uint16(width), uint16(rows), 0, int16(y), 0,
			c.screen.RootDepth, chunk).Check()
		if err != nil {
			return fmt.Errorf("x11: put image: %w", err)
		}
	}
	return nil
}
