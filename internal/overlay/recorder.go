package overlay

// OpKind names a recorded drawing command.
type OpKind string

const (
	OpStrokeRect OpKind = "stroke_rect"
	OpFillRect   OpKind = "fill_rect"
	OpLine       OpKind = "line"
	OpCircle     OpKind = "circle"
	OpText       OpKind = "text"
)

// Op is one recorded drawing command.
type Op struct {
	Kind   OpKind
	Rect   Rect
	X1, Y1 float64
	X2, Y2 float64
	Radius float64
	Text   string
	Style  Style
}

// Recorder is a Canvas that records commands instead of rasterizing them.
// Clear discards everything recorded so far.
type Recorder struct {
	W, H   int
	Ops    []Op
	Clears int
}

// NewRecorder returns a recorder reporting the given size.
func NewRecorder(width, height int) *Recorder {
	return &Recorder{W: width, H: height}
}

func (r *Recorder) Size() (int, int) { return r.W, r.H }

func (r *Recorder) Clear() {
	r.Ops = r.Ops[:0]
	r.Clears++
}

func (r *Recorder) StrokeRect(rect Rect, st Style) {
	r.Ops = append(r.Ops, Op{Kind: OpStrokeRect, Rect: rect, Style: st})
}

func (r *Recorder) FillRect(rect Rect, st Style) {
	r.Ops = append(r.Ops, Op{Kind: OpFillRect, Rect: rect, Style: st})
}

func (r *Recorder) Line(x1, y1, x2, y2 float64, st Style) {
	r.Ops = append(r.Ops, Op{Kind: OpLine, X1: x1, Y1: y1, X2: x2, Y2: y2, Style: st})
}

func (r *Recorder) Circle(cx, cy, radius float64, st Style) {
	r.Ops = append(r.Ops, Op{Kind: OpCircle, X1: cx, Y1: cy, Radius: radius, Style: st})
}

func (r *Recorder) Text(s string, x, y float64, st Style) {
	r.Ops = append(r.Ops, Op{Kind: OpText, Text: s, X1: x, Y1: y, Style: st})
}

// Count returns how many recorded ops have the given kind.
func (r *Recorder) Count(kind OpKind) int {
	n := 0
	for _, op := range r.Ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// Texts returns all recorded text strings in order.
func (r *Recorder) Texts() []string {
	var out []string
	for _, op := range r.Ops {
		if op.Kind == OpText {
			out = append(out, op.Text)
		}
	}
	return out
}
