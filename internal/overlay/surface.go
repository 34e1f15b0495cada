package overlay

import (
	"image"
	"image/draw"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// Surface is a raster Canvas backed by an *image.RGBA.
type Surface struct {
	img *image.RGBA
	dc  *gg.Context
}

// NewSurface allocates a transparent surface.
func NewSurface(width, height int) *Surface {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	dc := gg.NewContextForRGBA(img)
	dc.SetFontFace(basicfont.Face7x13)
	return &Surface{img: img, dc: dc}
}

// Image exposes the backing pixels. Callers must not retain it across draws
// they do not own.
func (s *Surface) Image() *image.RGBA { return s.img }

func (s *Surface) Size() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

func (s *Surface) Clear() {
	draw.Draw(s.img, s.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

func (s *Surface) StrokeRect(r Rect, st Style) {
	s.dc.SetColor(st.Color)
	s.dc.SetLineWidth(st.Width)
	s.dc.DrawRectangle(r.X, r.Y, r.W, r.H)
	s.dc.Stroke()
}

func (s *Surface) FillRect(r Rect, st Style) {
	s.dc.SetColor(st.Color)
	s.dc.DrawRectangle(r.X, r.Y, r.W, r.H)
	s.dc.Fill()
}

func (s *Surface) Line(x1, y1, x2, y2 float64, st Style) {
	s.dc.SetColor(st.Color)
	s.dc.SetLineWidth(st.Width)
	s.dc.DrawLine(x1, y1, x2, y2)
	s.dc.Stroke()
}

func (s *Surface) Circle(cx, cy, radius float64, st Style) {
	s.dc.SetColor(st.Color)
	s.dc.SetLineWidth(st.Width)
	s.dc.DrawCircle(cx, cy, radius)
	s.dc.Stroke()
}

func (s *Surface) Text(str string, x, y float64, st Style) {
	s.dc.SetColor(st.Color)
	s.dc.DrawStringAnchored(str, x, y, 0.5, 0.5)
}

// DrawFrame paints frame scaled to fill the surface, replacing existing pixels.
func (s *Surface) DrawFrame(frame image.Image) {
	if frame == nil {
		return
	}
	fb := frame.Bounds()
	w, h := s.Size()
	if fb.Dx() == w && fb.Dy() == h {
		draw.Draw(s.img, s.img.Bounds(), frame, fb.Min, draw.Src)
		return
	}
	s.dc.Push()
	s.dc.Scale(float64(w)/float64(fb.Dx()), float64(h)/float64(fb.Dy()))
	s.dc.DrawImage(frame, -fb.Min.X, -fb.Min.Y)
	s.dc.Pop()
}

// Composite draws frame scaled onto dst, then marks on top of it.
func Composite(dst *Surface, frame image.Image, marks image.Image) {
	dst.Clear()
	dst.DrawFrame(frame)
	if marks != nil {
		draw.Draw(dst.img, dst.img.Bounds(), marks, marks.Bounds().Min, draw.Over)
	}
}
