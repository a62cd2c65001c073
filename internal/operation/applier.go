package operation

import (
	"fmt"

	"github.com/a-khushal/rustboard/internal/apperr"
	"github.com/a-khushal/rustboard/internal/document"
)

// IDResolver bridges an Operation's client-local id to the document's
// server-assigned canonical id. Record is called once per Add operation;
// Resolve is called for every other operation referencing an id.
// *session.Session satisfies this for a single client within one session.
type IDResolver interface {
	Resolve(clientID string, localID uint64) uint64
	Record(clientID string, localID, canonicalID uint64)
}

// Result carries what happened when applying one Operation, so the caller
// (the connection handler) knows whether an Add assigned a canonical id to
// substitute before rebroadcast. It does not report whether the document
// actually changed.
type Result struct {
	// CanonicalID is set only for Add operations: the id assigned by the
	// document, to be substituted for the client's local id before the
	// Operation is broadcast to other clients.
	CanonicalID *uint64
}

// Apply reduces one Operation onto doc, resolving ids for clientID through
// resolver first. An op whose id doesn't resolve to anything live is not an
// error: the document mutators tolerate unknown ids silently, since the
// element may have just been deleted by a racing peer.
func Apply(op Operation, doc *document.Document, clientID string, resolver IDResolver) (Result, error) {
	if op.IsAdd() {
		id := applyAdd(op, doc)
		resolver.Record(clientID, op.ID, id)
		return Result{CanonicalID: &id}, nil
	}

	id := resolver.Resolve(clientID, op.ID)

	switch op.Op {
	case MoveRectangle:
		doc.MoveRectangle(id, point(op.Position), false)
	case ResizeRectangle:
		doc.ResizeRectangle(id, op.Width, op.Height, false)
	case DeleteRectangle:
		doc.DeleteRectangleWithoutSnapshot(id)
	case SetRectangleStyle:
		applyRectangleStyle(op, doc, id)

	case MoveEllipse:
		doc.MoveEllipse(id, point(op.Position), false)
	case ResizeEllipse:
		doc.ResizeEllipse(id, op.RadiusX, op.RadiusY, false)
	case DeleteEllipse:
		doc.DeleteEllipseWithoutSnapshot(id)
	case SetEllipseStyle:
		applyEllipseStyle(op, doc, id)

	case MoveDiamond:
		doc.MoveDiamond(id, point(op.Position), false)
	case ResizeDiamond:
		doc.ResizeDiamond(id, op.Width, op.Height, false)
	case DeleteDiamond:
		doc.DeleteDiamondWithoutSnapshot(id)
	case SetDiamondStyle:
		applyDiamondStyle(op, doc, id)

	case MoveLine:
		doc.MoveLine(id, point(op.Start), point(op.End), false)
	case DeleteLine:
		doc.DeleteLineWithoutSnapshot(id)
	case SetLineStyle:
		if op.StrokeColor != nil {
			doc.SetLineStrokeColor(id, *op.StrokeColor, false)
		}
		if op.LineWidth != nil {
			doc.SetLineLineWidth(id, *op.LineWidth, false)
		}
		if op.DashPattern != nil {
			doc.SetLineDashPattern(id, *op.DashPattern, false)
		}

	case MoveArrow:
		doc.MoveArrow(id, point(op.Start), point(op.End), false)
	case DeleteArrow:
		doc.DeleteArrowWithoutSnapshot(id)
	case SetArrowStyle:
		if op.StrokeColor != nil {
			doc.SetArrowStrokeColor(id, *op.StrokeColor, false)
		}
		if op.LineWidth != nil {
			doc.SetArrowLineWidth(id, *op.LineWidth, false)
		}
		if op.DashPattern != nil {
			doc.SetArrowDashPattern(id, *op.DashPattern, false)
		}

	case MovePath:
		doc.MovePath(id, op.OffsetX, op.OffsetY, false)
	case SetPathPoints:
		doc.SetPathPoints(id, op.Points, false)
	case DeletePath:
		doc.DeletePathWithoutSnapshot(id)
	case SetPathStyle:
		if op.StrokeColor != nil {
			doc.SetPathStrokeColor(id, *op.StrokeColor, false)
		}
		if op.LineWidth != nil {
			doc.SetPathLineWidth(id, *op.LineWidth, false)
		}
		if op.RotationAngle != nil {
			doc.SetPathRotation(id, *op.RotationAngle, false)
		}

	case MoveImage:
		doc.MoveImage(id, point(op.Position), false)
	case ResizeImage:
		doc.ResizeImage(id, op.Width, op.Height, false)
	case DeleteImage:
		doc.DeleteImageWithoutSnapshot(id)
	case SetImageStyle:
		if op.RotationAngle != nil {
			doc.SetImageRotation(id, *op.RotationAngle, false)
		}

	case MoveText:
		doc.MoveText(id, point(op.Position), false)
	case ResizeText:
		doc.ResizeText(id, op.Width, op.Height, false)
	case UpdateText:
		if op.Content != nil {
			doc.SetTextContent(id, *op.Content, false)
		}
	case DeleteText:
		doc.DeleteTextWithoutSnapshot(id)
	case SetTextStyle:
		applyTextStyle(op, doc, id)

	case BringToFront:
		doc.BringToFront(id)
	case BringForward:
		doc.BringForward(id)
	case SendBackward:
		doc.SendBackward(id)
	case SendToBack:
		doc.SendToBack(id)
	case SetLocked:
		if op.Locked != nil {
			doc.SetLocked(id, *op.Locked)
		}

	case FullSync:
		if op.Data == nil {
			return Result{}, fmt.Errorf("operation: FullSync missing data: %w", apperr.Apply)
		}
		if err := doc.Deserialize(*op.Data); err != nil {
			return Result{}, fmt.Errorf("operation: FullSync: %w: %w", apperr.Apply, err)
		}

	default:
		return Result{}, fmt.Errorf("operation: unknown op %q: %w", op.Op, apperr.Apply)
	}

	return Result{}, nil
}

func applyAdd(op Operation, doc *document.Document) uint64 {
	switch op.Op {
	case AddRectangle:
		return doc.AddRectangleWithoutSnapshot(point(op.Position), op.Width, op.Height)
	case AddEllipse:
		return doc.AddEllipseWithoutSnapshot(point(op.Position), op.RadiusX, op.RadiusY)
	case AddDiamond:
		return doc.AddDiamondWithoutSnapshot(point(op.Position), op.Width, op.Height)
	case AddLine:
		return doc.AddLineWithoutSnapshot(point(op.Start), point(op.End))
	case AddArrow:
		return doc.AddArrowWithoutSnapshot(point(op.Start), point(op.End))
	case AddPath:
		return doc.AddPathWithoutSnapshot(op.Points)
	case AddImage:
		data := ""
		if op.ImageData != nil {
			data = *op.ImageData
		}
		return doc.AddImageWithoutSnapshot(point(op.Position), op.Width, op.Height, data)
	case AddText:
		content := ""
		if op.Content != nil {
			content = *op.Content
		}
		return doc.AddTextWithoutSnapshot(point(op.Position), op.Width, op.Height, content)
	default:
		return 0
	}
}

func applyRectangleStyle(op Operation, doc *document.Document, id uint64) {
	if op.StrokeColor != nil {
		doc.SetRectangleStrokeColor(id, *op.StrokeColor, false)
	}
	if fill, ok := op.FillColorValue(); ok {
		doc.SetRectangleFillColor(id, fill, false)
	}
	if op.LineWidth != nil {
		doc.SetRectangleLineWidth(id, *op.LineWidth, false)
	}
	if op.DashPattern != nil {
		doc.SetRectangleDashPattern(id, *op.DashPattern, false)
	}
	if op.BorderRadius != nil {
		doc.SetRectangleBorderRadius(id, *op.BorderRadius, false)
	}
	if op.RotationAngle != nil {
		doc.SetRectangleRotation(id, *op.RotationAngle, false)
	}
}

func applyEllipseStyle(op Operation, doc *document.Document, id uint64) {
	if op.StrokeColor != nil {
		doc.SetEllipseStrokeColor(id, *op.StrokeColor, false)
	}
	if fill, ok := op.FillColorValue(); ok {
		doc.SetEllipseFillColor(id, fill, false)
	}
	if op.LineWidth != nil {
		doc.SetEllipseLineWidth(id, *op.LineWidth, false)
	}
	if op.DashPattern != nil {
		doc.SetEllipseDashPattern(id, *op.DashPattern, false)
	}
	if op.RotationAngle != nil {
		doc.SetEllipseRotation(id, *op.RotationAngle, false)
	}
}

func applyDiamondStyle(op Operation, doc *document.Document, id uint64) {
	if op.StrokeColor != nil {
		doc.SetDiamondStrokeColor(id, *op.StrokeColor, false)
	}
	if fill, ok := op.FillColorValue(); ok {
		doc.SetDiamondFillColor(id, fill, false)
	}
	if op.LineWidth != nil {
		doc.SetDiamondLineWidth(id, *op.LineWidth, false)
	}
	if op.DashPattern != nil {
		doc.SetDiamondDashPattern(id, *op.DashPattern, false)
	}
	if op.BorderRadius != nil {
		doc.SetDiamondBorderRadius(id, *op.BorderRadius, false)
	}
	if op.RotationAngle != nil {
		doc.SetDiamondRotation(id, *op.RotationAngle, false)
	}
}

func applyTextStyle(op Operation, doc *document.Document, id uint64) {
	if op.Color != nil {
		doc.SetTextColor(id, *op.Color, false)
	}
	if op.FontSize != nil {
		doc.SetTextFontSize(id, *op.FontSize, false)
	}
	if op.FontFamily != nil {
		doc.SetTextFontFamily(id, *op.FontFamily, false)
	}
	if op.FontWeight != nil {
		doc.SetTextFontWeight(id, *op.FontWeight, false)
	}
	if op.TextAlign != nil {
		doc.SetTextTextAlign(id, *op.TextAlign, false)
	}
	if op.RotationAngle != nil {
		doc.SetTextRotation(id, *op.RotationAngle, false)
	}
}

func point(p *document.Point) document.Point {
	if p == nil {
		return document.Point{}
	}
	return *p
}
