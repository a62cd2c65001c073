package document

const defaultFontSize = 16.0
const minLineWidth = 0.1
const minBorderRadius = 0.0
const minDimension = 1.0

// Rectangle is an axis-aligned box primitive.
type Rectangle struct {
	ID            uint64  `json:"id"`
	Position      Point   `json:"position"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	StrokeColor   string  `json:"strokeColor"`
	FillColor     *string `json:"fillColor"`
	LineWidth     float64 `json:"lineWidth"`
	DashPattern   string  `json:"dashPattern"`
	BorderRadius  float64 `json:"borderRadius"`
	RotationAngle float64 `json:"rotationAngle"`
}

// Ellipse is a position + radii primitive.
type Ellipse struct {
	ID            uint64  `json:"id"`
	Position      Point   `json:"position"`
	RadiusX       float64 `json:"radiusX"`
	RadiusY       float64 `json:"radiusY"`
	StrokeColor   string  `json:"strokeColor"`
	FillColor     *string `json:"fillColor"`
	LineWidth     float64 `json:"lineWidth"`
	DashPattern   string  `json:"dashPattern"`
	RotationAngle float64 `json:"rotationAngle"`
}

// Diamond is a rectangle-shaped bounding box rendered as a rotated rhombus.
type Diamond struct {
	ID            uint64  `json:"id"`
	Position      Point   `json:"position"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	StrokeColor   string  `json:"strokeColor"`
	FillColor     *string `json:"fillColor"`
	LineWidth     float64 `json:"lineWidth"`
	DashPattern   string  `json:"dashPattern"`
	BorderRadius  float64 `json:"borderRadius"`
	RotationAngle float64 `json:"rotationAngle"`
}

// Line is a two-point straight segment.
type Line struct {
	ID          uint64  `json:"id"`
	Start       Point   `json:"start"`
	End         Point   `json:"end"`
	StrokeColor string  `json:"strokeColor"`
	LineWidth   float64 `json:"lineWidth"`
	DashPattern string  `json:"dashPattern"`
}

// Arrow is a Line with a rendered arrowhead (the core does not care which end).
type Arrow struct {
	ID          uint64  `json:"id"`
	Start       Point   `json:"start"`
	End         Point   `json:"end"`
	StrokeColor string  `json:"strokeColor"`
	LineWidth   float64 `json:"lineWidth"`
	DashPattern string  `json:"dashPattern"`
}

// Path is a free-form polyline.
type Path struct {
	ID            uint64  `json:"id"`
	Points        []Point `json:"points"`
	StrokeColor   string  `json:"strokeColor"`
	LineWidth     float64 `json:"lineWidth"`
	RotationAngle float64 `json:"rotationAngle"`
}

// Image is a positioned bitmap; ImageData is an opaque data-URI or reference.
type Image struct {
	ID            uint64  `json:"id"`
	Position      Point   `json:"position"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	ImageData     string  `json:"imageData"`
	RotationAngle float64 `json:"rotationAngle"`
}

// Text is an editable text box. FontSize defaults to 16 when a snapshot
// omits it, so older snapshots without the field still load.
type Text struct {
	ID            uint64  `json:"id"`
	Position      Point   `json:"position"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	Content       string  `json:"content"`
	Color         string  `json:"color"`
	FontSize      float64 `json:"fontSize"`
	FontFamily    string  `json:"fontFamily"`
	FontWeight    string  `json:"fontWeight"`
	TextAlign     string  `json:"textAlign"`
	RotationAngle float64 `json:"rotationAngle"`
}

func clampLineWidth(w float64) float64 {
	if w < minLineWidth {
		return minLineWidth
	}
	return w
}

func clampBorderRadius(r float64) float64 {
	if r < minBorderRadius {
		return minBorderRadius
	}
	return r
}

func clampDimension(v float64) float64 {
	if v < minDimension {
		return minDimension
	}
	return v
}
