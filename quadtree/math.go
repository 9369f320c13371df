package quadtree

// Vec2 is a 2D point or extent.
type Vec2 struct {
	X float32
	Y float32
}

func NewVec2(x, y float32) Vec2 {
	return Vec2{x, y}
}

func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{v.X + o.X, v.Y + o.Y}
}

func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{v.X - o.X, v.Y - o.Y}
}

func (v Vec2) Mul(s float32) Vec2 {
	return Vec2{v.X * s, v.Y * s}
}

func (v Vec2) Equal(o Vec2) bool {
	return v.X == o.X && v.Y == o.Y
}

// Rect is an axis-aligned rectangle described by its min and max corners.
type Rect struct {
	Min Vec2
	Max Vec2
}

// NewRect returns a rect from an origin and a width/height.
func NewRect(x, y, w, h float32) Rect {
	return Rect{
		Min: Vec2{x, y},
		Max: Vec2{x + w, y + h},
	}
}

func (r Rect) Width() float32 {
	return r.Max.X - r.Min.X
}

func (r Rect) Height() float32 {
	return r.Max.Y - r.Min.Y
}

func (r Rect) Center() Vec2 {
	return Vec2{
		X: (r.Min.X + r.Max.X) * 0.5,
		Y: (r.Min.Y + r.Max.Y) * 0.5,
	}
}

func (r Rect) Equal(o Rect) bool {
	return r.Min.Equal(o.Min) && r.Max.Equal(o.Max)
}

// Intersects reports whether the two rects overlap. Touching edges count as
// an overlap so that a shape sitting exactly on a quadrant seam belongs to
// every adjacent quadrant instead of none.
func (r Rect) Intersects(o Rect) bool {
	return r.Min.X <= o.Max.X && r.Max.X >= o.Min.X &&
		r.Min.Y <= o.Max.Y && r.Max.Y >= o.Min.Y
}

// Contains reports whether o is fully inside r.
func (r Rect) Contains(o Rect) bool {
	return o.Min.X >= r.Min.X && o.Min.Y >= r.Min.Y &&
		o.Max.X <= r.Max.X && o.Max.Y <= r.Max.Y
}

// Quadrant returns one of the four equal subdivisions of r. Quadrants are
// ordered north-west, north-east, south-west, south-east.
func (r Rect) Quadrant(i int) Rect {
	c := r.Center()

	switch i {
	case 0:
		return Rect{Min: r.Min, Max: c}
	case 1:
		return Rect{Min: Vec2{c.X, r.Min.Y}, Max: Vec2{r.Max.X, c.Y}}
	case 2:
		return Rect{Min: Vec2{r.Min.X, c.Y}, Max: Vec2{c.X, r.Max.Y}}
	default:
		return Rect{Min: c, Max: r.Max}
	}
}
