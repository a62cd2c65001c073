// Package operation defines the wire-level Operation tagged union and the
// deterministic applier that reduces one Operation onto a
// document.Document.
package operation

import (
	"encoding/json"

	"github.com/a-khushal/rustboard/internal/document"
)

// Kind tags which case of the Operation union is populated. The wire field
// is "op".
type Kind string

const (
	AddRectangle    Kind = "AddRectangle"
	MoveRectangle   Kind = "MoveRectangle"
	ResizeRectangle Kind = "ResizeRectangle"
	DeleteRectangle Kind = "DeleteRectangle"

	AddEllipse    Kind = "AddEllipse"
	MoveEllipse   Kind = "MoveEllipse"
	ResizeEllipse Kind = "ResizeEllipse"
	DeleteEllipse Kind = "DeleteEllipse"

	AddDiamond    Kind = "AddDiamond"
	MoveDiamond   Kind = "MoveDiamond"
	ResizeDiamond Kind = "ResizeDiamond"
	DeleteDiamond Kind = "DeleteDiamond"

	AddLine    Kind = "AddLine"
	MoveLine   Kind = "MoveLine"
	DeleteLine Kind = "DeleteLine"

	AddArrow    Kind = "AddArrow"
	MoveArrow   Kind = "MoveArrow"
	DeleteArrow Kind = "DeleteArrow"

	AddPath       Kind = "AddPath"
	MovePath      Kind = "MovePath"
	SetPathPoints Kind = "SetPathPoints"
	DeletePath    Kind = "DeletePath"

	AddImage    Kind = "AddImage"
	MoveImage   Kind = "MoveImage"
	ResizeImage Kind = "ResizeImage"
	DeleteImage Kind = "DeleteImage"

	AddText    Kind = "AddText"
	MoveText   Kind = "MoveText"
	ResizeText Kind = "ResizeText"
	UpdateText Kind = "UpdateText"
	DeleteText Kind = "DeleteText"

	SetRectangleStyle Kind = "SetRectangleStyle"
	SetEllipseStyle   Kind = "SetEllipseStyle"
	SetDiamondStyle   Kind = "SetDiamondStyle"
	SetLineStyle      Kind = "SetLineStyle"
	SetArrowStyle     Kind = "SetArrowStyle"
	SetPathStyle      Kind = "SetPathStyle"
	SetImageStyle     Kind = "SetImageStyle"
	SetTextStyle      Kind = "SetTextStyle"

	BringToFront  Kind = "BringToFront"
	BringForward  Kind = "BringForward"
	SendBackward  Kind = "SendBackward"
	SendToBack    Kind = "SendToBack"
	SetLocked     Kind = "SetLocked"

	FullSync Kind = "FullSync"
)

// Operation is the flattened wire representation of every case: fields
// irrelevant to a given Op are simply left zero/nil and omitted from JSON.
// The nullable fill-color attribute is kept as raw JSON so the decoder can
// distinguish "field absent" (empty) from "field present with value null"
// from "field present with a string": absent leaves the attribute alone,
// null clears it. A plain pointer cannot carry that tri-state, since the
// decoder collapses a null literal into the outermost pointer being nil,
// indistinguishable from the field never appearing.
type Operation struct {
	Op Kind `json:"op"`

	ID uint64 `json:"id,omitempty"`

	Position *document.Point  `json:"position,omitempty"`
	Start    *document.Point  `json:"start,omitempty"`
	End      *document.Point  `json:"end,omitempty"`
	Points   []document.Point `json:"points,omitempty"`

	Width   float64 `json:"width,omitempty"`
	Height  float64 `json:"height,omitempty"`
	RadiusX float64 `json:"radiusX,omitempty"`
	RadiusY float64 `json:"radiusY,omitempty"`
	OffsetX float64 `json:"offsetX,omitempty"`
	OffsetY float64 `json:"offsetY,omitempty"`

	Content   *string `json:"content,omitempty"`
	ImageData *string `json:"imageData,omitempty"`
	Locked    *bool   `json:"locked,omitempty"`
	Data      *string `json:"data,omitempty"`

	StrokeColor   *string         `json:"strokeColor,omitempty"`
	FillColor     json.RawMessage `json:"fillColor,omitempty"`
	LineWidth     *float64        `json:"lineWidth,omitempty"`
	DashPattern   *string         `json:"dashPattern,omitempty"`
	BorderRadius  *float64        `json:"borderRadius,omitempty"`
	RotationAngle *float64        `json:"rotationAngle,omitempty"`

	Color      *string  `json:"color,omitempty"`
	FontSize   *float64 `json:"fontSize,omitempty"`
	FontFamily *string  `json:"fontFamily,omitempty"`
	FontWeight *string  `json:"fontWeight,omitempty"`
	TextAlign  *string  `json:"textAlign,omitempty"`
}

// FillColorValue decodes the tri-state fill-color field. ok reports whether
// the field was present at all; a present null yields a nil pointer,
// meaning "clear the fill".
func (o Operation) FillColorValue() (color *string, ok bool) {
	if len(o.FillColor) == 0 {
		return nil, false
	}
	if err := json.Unmarshal(o.FillColor, &color); err != nil {
		return nil, false
	}
	return color, true
}

// IsAdd reports whether this Op case creates a new element and therefore
// carries a client-local id that must be resolved to a server-assigned
// canonical id.
func (o Operation) IsAdd() bool {
	switch o.Op {
	case AddRectangle, AddEllipse, AddDiamond, AddLine, AddArrow, AddPath, AddImage, AddText:
		return true
	default:
		return false
	}
}

// RequiresEditor reports whether this Op case must be gated to editor-role
// connections. Every Update (FullSync included) is editor-only; Presence is
// a separate message type handled outside the applier entirely.
func (o Operation) RequiresEditor() bool { return true }
