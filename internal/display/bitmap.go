// Package display drives a row of 8x8 LED matrices: the bitmap model, the
// panel adapters (in-memory and frame capture), the weather-type to icon
// mapping, and the forecast renderer.
package display

const (
	MatrixWidth  = 8
	MatrixHeight = 8
)

// Bitmap is one matrix worth of pixel brightness values (0-255).
type Bitmap struct {
	Pixels [MatrixWidth * MatrixHeight]uint8 `json:"pixels"`
}

// Set writes a pixel. Out-of-range coordinates are ignored.
func (b *Bitmap) Set(x, y int, v uint8) {
	if x < 0 || x >= MatrixWidth || y < 0 || y >= MatrixHeight {
		return
	}
	b.Pixels[y*MatrixWidth+x] = v
}

// At reads a pixel; out-of-range coordinates read as 0.
func (b *Bitmap) At(x, y int) uint8 {
	if x < 0 || x >= MatrixWidth || y < 0 || y >= MatrixHeight {
		return 0
	}
	return b.Pixels[y*MatrixWidth+x]
}

func (b *Bitmap) Clear() {
	b.Pixels = [MatrixWidth * MatrixHeight]uint8{}
}

// Lit counts non-zero pixels.
func (b *Bitmap) Lit() int {
	n := 0
	for _, v := range b.Pixels {
		if v > 0 {
			n++
		}
	}
	return n
}

// ErrorPattern returns the full-brightness X shown when the forecast cannot be refreshed.
func ErrorPattern() Bitmap {
	var b Bitmap
	for i := 0; i < MatrixWidth; i++ {
		b.Set(i, i, 255)
		b.Set(MatrixWidth-1-i, i, 255)
	}
	return b
}
