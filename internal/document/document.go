package document

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// kind tags an id with which per-type map owns it, so z-order and lock
// operations can stay generic across primitive types.
type kind string

const (
	kindRectangle kind = "rectangle"
	kindEllipse   kind = "ellipse"
	kindDiamond   kind = "diamond"
	kindLine      kind = "line"
	kindArrow     kind = "arrow"
	kindPath      kind = "path"
	kindImage     kind = "image"
	kindText      kind = "text"
)

// Document is the in-memory vector scene for one session. Exclusive write
// access is enforced by its own mutex; callers needing a consistent read
// should hold the document only for the duration of the read or mutation,
// never across a blocking call.
type Document struct {
	mu sync.RWMutex

	nextID uint64
	order  []uint64 // z-order, index 0 = back-most, len-1 = front-most
	kinds  map[uint64]kind
	locked map[uint64]bool

	rectangles map[uint64]*Rectangle
	ellipses   map[uint64]*Ellipse
	diamonds   map[uint64]*Diamond
	lines      map[uint64]*Line
	arrows     map[uint64]*Arrow
	paths      map[uint64]*Path
	images     map[uint64]*Image
	texts      map[uint64]*Text
}

// New returns an empty document. Canonical ids start at 1; 0 is never a
// valid element id, so the wire layer can treat it as absent.
func New() *Document {
	return &Document{
		nextID:     1,
		kinds:      make(map[uint64]kind),
		locked:     make(map[uint64]bool),
		rectangles: make(map[uint64]*Rectangle),
		ellipses:   make(map[uint64]*Ellipse),
		diamonds:   make(map[uint64]*Diamond),
		lines:      make(map[uint64]*Line),
		arrows:     make(map[uint64]*Arrow),
		paths:      make(map[uint64]*Path),
		images:     make(map[uint64]*Image),
		texts:      make(map[uint64]*Text),
	}
}

func (d *Document) allocID() uint64 {
	id := d.nextID
	d.nextID++
	return id
}

func (d *Document) register(id uint64, k kind) {
	d.kinds[id] = k
	d.order = append(d.order, id)
}

func (d *Document) forget(id uint64) {
	delete(d.kinds, id)
	delete(d.locked, id)
	for i, o := range d.order {
		if o == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// History reports undo/redo availability. The undo engine lives in the
// client editor; the collaboration path never calls mutators with
// saveHistory true, so this always reports false. Kept as a seam for a
// document implementation that does track history.
func (d *Document) History() (canUndo, canRedo bool) {
	return false, false
}

// ─────────────────────────────────────────────────────────────
// Rectangle
// ─────────────────────────────────────────────────────────────

// AddRectangleWithoutSnapshot adds a rectangle and returns its canonical id.
// "WithoutSnapshot" means no history snapshot is taken: the collaboration
// path never touches the document's own undo history.
func (d *Document) AddRectangleWithoutSnapshot(pos Point, width, height float64) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.allocID()
	d.rectangles[id] = &Rectangle{
		ID: id, Position: pos,
		Width: clampDimension(width), Height: clampDimension(height),
		StrokeColor: "#000000", LineWidth: 1,
	}
	d.register(id, kindRectangle)
	return id
}

func (d *Document) MoveRectangle(id uint64, pos Point, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.rectangles[id]; ok {
		r.Position = pos
	}
}

func (d *Document) ResizeRectangle(id uint64, width, height float64, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.rectangles[id]; ok {
		r.Width, r.Height = clampDimension(width), clampDimension(height)
	}
}

func (d *Document) DeleteRectangleWithoutSnapshot(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.rectangles[id]; ok {
		delete(d.rectangles, id)
		d.forget(id)
	}
}

func (d *Document) SetRectangleStrokeColor(id uint64, color string, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.rectangles[id]; ok {
		r.StrokeColor = color
	}
}

func (d *Document) SetRectangleFillColor(id uint64, color *string, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.rectangles[id]; ok {
		r.FillColor = color
	}
}

func (d *Document) SetRectangleLineWidth(id uint64, w float64, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.rectangles[id]; ok {
		r.LineWidth = clampLineWidth(w)
	}
}

func (d *Document) SetRectangleDashPattern(id uint64, pattern string, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.rectangles[id]; ok {
		r.DashPattern = pattern
	}
}

func (d *Document) SetRectangleBorderRadius(id uint64, radius float64, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.rectangles[id]; ok {
		r.BorderRadius = clampBorderRadius(radius)
	}
}

func (d *Document) SetRectangleRotation(id uint64, angle float64, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.rectangles[id]; ok {
		r.RotationAngle = angle
	}
}

// ─────────────────────────────────────────────────────────────
// Ellipse
// ─────────────────────────────────────────────────────────────

func (d *Document) AddEllipseWithoutSnapshot(pos Point, radiusX, radiusY float64) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.allocID()
	d.ellipses[id] = &Ellipse{
		ID: id, Position: pos,
		RadiusX: clampDimension(radiusX), RadiusY: clampDimension(radiusY),
		StrokeColor: "#000000", LineWidth: 1,
	}
	d.register(id, kindEllipse)
	return id
}

func (d *Document) MoveEllipse(id uint64, pos Point, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.ellipses[id]; ok {
		e.Position = pos
	}
}

func (d *Document) ResizeEllipse(id uint64, radiusX, radiusY float64, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.ellipses[id]; ok {
		e.RadiusX, e.RadiusY = clampDimension(radiusX), clampDimension(radiusY)
	}
}

func (d *Document) DeleteEllipseWithoutSnapshot(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.ellipses[id]; ok {
		delete(d.ellipses, id)
		d.forget(id)
	}
}

func (d *Document) SetEllipseStrokeColor(id uint64, color string, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.ellipses[id]; ok {
		e.StrokeColor = color
	}
}

func (d *Document) SetEllipseFillColor(id uint64, color *string, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.ellipses[id]; ok {
		e.FillColor = color
	}
}

func (d *Document) SetEllipseLineWidth(id uint64, w float64, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.ellipses[id]; ok {
		e.LineWidth = clampLineWidth(w)
	}
}

func (d *Document) SetEllipseDashPattern(id uint64, pattern string, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.ellipses[id]; ok {
		e.DashPattern = pattern
	}
}

func (d *Document) SetEllipseRotation(id uint64, angle float64, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.ellipses[id]; ok {
		e.RotationAngle = angle
	}
}

// ─────────────────────────────────────────────────────────────
// Diamond
// ─────────────────────────────────────────────────────────────

func (d *Document) AddDiamondWithoutSnapshot(pos Point, width, height float64) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.allocID()
	d.diamonds[id] = &Diamond{
		ID: id, Position: pos,
		Width: clampDimension(width), Height: clampDimension(height),
		StrokeColor: "#000000", LineWidth: 1,
	}
	d.register(id, kindDiamond)
	return id
}

func (d *Document) MoveDiamond(id uint64, pos Point, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.diamonds[id]; ok {
		s.Position = pos
	}
}

func (d *Document) ResizeDiamond(id uint64, width, height float64, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.diamonds[id]; ok {
		s.Width, s.Height = clampDimension(width), clampDimension(height)
	}
}

func (d *Document) DeleteDiamondWithoutSnapshot(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.diamonds[id]; ok {
		delete(d.diamonds, id)
		d.forget(id)
	}
}

func (d *Document) SetDiamondStrokeColor(id uint64, color string, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.diamonds[id]; ok {
		s.StrokeColor = color
	}
}

func (d *Document) SetDiamondFillColor(id uint64, color *string, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.diamonds[id]; ok {
		s.FillColor = color
	}
}

func (d *Document) SetDiamondLineWidth(id uint64, w float64, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.diamonds[id]; ok {
		s.LineWidth = clampLineWidth(w)
	}
}

func (d *Document) SetDiamondDashPattern(id uint64, pattern string, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.diamonds[id]; ok {
		s.DashPattern = pattern
	}
}

func (d *Document) SetDiamondBorderRadius(id uint64, radius float64, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.diamonds[id]; ok {
		s.BorderRadius = clampBorderRadius(radius)
	}
}

func (d *Document) SetDiamondRotation(id uint64, angle float64, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.diamonds[id]; ok {
		s.RotationAngle = angle
	}
}

// ─────────────────────────────────────────────────────────────
// Line
// ─────────────────────────────────────────────────────────────

func (d *Document) AddLineWithoutSnapshot(start, end Point) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.allocID()
	d.lines[id] = &Line{ID: id, Start: start, End: end, StrokeColor: "#000000", LineWidth: 1}
	d.register(id, kindLine)
	return id
}

func (d *Document) MoveLine(id uint64, start, end Point, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if l, ok := d.lines[id]; ok {
		l.Start, l.End = start, end
	}
}

func (d *Document) DeleteLineWithoutSnapshot(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.lines[id]; ok {
		delete(d.lines, id)
		d.forget(id)
	}
}

func (d *Document) SetLineStrokeColor(id uint64, color string, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if l, ok := d.lines[id]; ok {
		l.StrokeColor = color
	}
}

func (d *Document) SetLineLineWidth(id uint64, w float64, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if l, ok := d.lines[id]; ok {
		l.LineWidth = clampLineWidth(w)
	}
}

func (d *Document) SetLineDashPattern(id uint64, pattern string, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if l, ok := d.lines[id]; ok {
		l.DashPattern = pattern
	}
}

// ─────────────────────────────────────────────────────────────
// Arrow
// ─────────────────────────────────────────────────────────────

func (d *Document) AddArrowWithoutSnapshot(start, end Point) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.allocID()
	d.arrows[id] = &Arrow{ID: id, Start: start, End: end, StrokeColor: "#000000", LineWidth: 1}
	d.register(id, kindArrow)
	return id
}

func (d *Document) MoveArrow(id uint64, start, end Point, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if a, ok := d.arrows[id]; ok {
		a.Start, a.End = start, end
	}
}

func (d *Document) DeleteArrowWithoutSnapshot(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.arrows[id]; ok {
		delete(d.arrows, id)
		d.forget(id)
	}
}

func (d *Document) SetArrowStrokeColor(id uint64, color string, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if a, ok := d.arrows[id]; ok {
		a.StrokeColor = color
	}
}

func (d *Document) SetArrowLineWidth(id uint64, w float64, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if a, ok := d.arrows[id]; ok {
		a.LineWidth = clampLineWidth(w)
	}
}

func (d *Document) SetArrowDashPattern(id uint64, pattern string, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if a, ok := d.arrows[id]; ok {
		a.DashPattern = pattern
	}
}

// ─────────────────────────────────────────────────────────────
// Path
// ─────────────────────────────────────────────────────────────

func (d *Document) AddPathWithoutSnapshot(points []Point) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.allocID()
	d.paths[id] = &Path{ID: id, Points: append([]Point(nil), points...), StrokeColor: "#000000", LineWidth: 1}
	d.register(id, kindPath)
	return id
}

func (d *Document) MovePath(id uint64, offsetX, offsetY float64, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.paths[id]
	if !ok {
		return
	}
	for i := range p.Points {
		p.Points[i].X += offsetX
		p.Points[i].Y += offsetY
	}
}

func (d *Document) SetPathPoints(id uint64, points []Point, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.paths[id]; ok {
		p.Points = append([]Point(nil), points...)
	}
}

func (d *Document) DeletePathWithoutSnapshot(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.paths[id]; ok {
		delete(d.paths, id)
		d.forget(id)
	}
}

func (d *Document) SetPathStrokeColor(id uint64, color string, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.paths[id]; ok {
		p.StrokeColor = color
	}
}

func (d *Document) SetPathLineWidth(id uint64, w float64, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.paths[id]; ok {
		p.LineWidth = clampLineWidth(w)
	}
}

func (d *Document) SetPathRotation(id uint64, angle float64, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.paths[id]; ok {
		p.RotationAngle = angle
	}
}

// ─────────────────────────────────────────────────────────────
// Image
// ─────────────────────────────────────────────────────────────

func (d *Document) AddImageWithoutSnapshot(pos Point, width, height float64, data string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.allocID()
	d.images[id] = &Image{ID: id, Position: pos, Width: clampDimension(width), Height: clampDimension(height), ImageData: data}
	d.register(id, kindImage)
	return id
}

func (d *Document) MoveImage(id uint64, pos Point, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i, ok := d.images[id]; ok {
		i.Position = pos
	}
}

func (d *Document) ResizeImage(id uint64, width, height float64, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i, ok := d.images[id]; ok {
		i.Width, i.Height = clampDimension(width), clampDimension(height)
	}
}

func (d *Document) DeleteImageWithoutSnapshot(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.images[id]; ok {
		delete(d.images, id)
		d.forget(id)
	}
}

func (d *Document) SetImageRotation(id uint64, angle float64, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i, ok := d.images[id]; ok {
		i.RotationAngle = angle
	}
}

// ─────────────────────────────────────────────────────────────
// Text
// ─────────────────────────────────────────────────────────────

func (d *Document) AddTextWithoutSnapshot(pos Point, width, height float64, content string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.allocID()
	d.texts[id] = &Text{
		ID: id, Position: pos, Width: clampDimension(width), Height: clampDimension(height),
		Content: content, Color: "#000000", FontSize: defaultFontSize, FontFamily: "sans-serif",
	}
	d.register(id, kindText)
	return id
}

func (d *Document) MoveText(id uint64, pos Point, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.texts[id]; ok {
		t.Position = pos
	}
}

func (d *Document) ResizeText(id uint64, width, height float64, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.texts[id]; ok {
		t.Width, t.Height = clampDimension(width), clampDimension(height)
	}
}

func (d *Document) SetTextContent(id uint64, content string, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.texts[id]; ok {
		t.Content = content
	}
}

func (d *Document) DeleteTextWithoutSnapshot(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.texts[id]; ok {
		delete(d.texts, id)
		d.forget(id)
	}
}

func (d *Document) SetTextColor(id uint64, color string, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.texts[id]; ok {
		t.Color = color
	}
}

func (d *Document) SetTextFontSize(id uint64, size float64, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.texts[id]; ok {
		t.FontSize = size
	}
}

func (d *Document) SetTextFontFamily(id uint64, family string, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.texts[id]; ok {
		t.FontFamily = family
	}
}

func (d *Document) SetTextFontWeight(id uint64, weight string, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.texts[id]; ok {
		t.FontWeight = weight
	}
}

func (d *Document) SetTextTextAlign(id uint64, align string, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.texts[id]; ok {
		t.TextAlign = align
	}
}

func (d *Document) SetTextRotation(id uint64, angle float64, saveHistory bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.texts[id]; ok {
		t.RotationAngle = angle
	}
}

// ─────────────────────────────────────────────────────────────
// Z-order and lock (generic across primitive types)
// ─────────────────────────────────────────────────────────────

func (d *Document) indexOf(id uint64) int {
	for i, o := range d.order {
		if o == id {
			return i
		}
	}
	return -1
}

// BringToFront moves id to the top of the z-order.
func (d *Document) BringToFront(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.indexOf(id)
	if i < 0 || i == len(d.order)-1 {
		return
	}
	d.order = append(append(d.order[:i], d.order[i+1:]...), id)
}

// BringForward swaps id with its next-higher neighbor.
func (d *Document) BringForward(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.indexOf(id)
	if i < 0 || i == len(d.order)-1 {
		return
	}
	d.order[i], d.order[i+1] = d.order[i+1], d.order[i]
}

// SendBackward swaps id with its next-lower neighbor.
func (d *Document) SendBackward(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.indexOf(id)
	if i <= 0 {
		return
	}
	d.order[i], d.order[i-1] = d.order[i-1], d.order[i]
}

// SendToBack moves id to the bottom of the z-order.
func (d *Document) SendToBack(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.indexOf(id)
	if i <= 0 {
		return
	}
	rest := append([]uint64{}, d.order[:i]...)
	rest = append(rest, d.order[i+1:]...)
	d.order = append([]uint64{id}, rest...)
}

// SetLocked sets or clears the lock flag on an element.
func (d *Document) SetLocked(id uint64, locked bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.kinds[id]; !ok {
		return
	}
	if locked {
		d.locked[id] = true
	} else {
		delete(d.locked, id)
	}
}

// Exists reports whether id is a currently-live element of any kind.
func (d *Document) Exists(id uint64) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.kinds[id]
	return ok
}

// ─────────────────────────────────────────────────────────────
// Snapshot (de)serialization
// ─────────────────────────────────────────────────────────────

type snapshot struct {
	Rectangles []rectSnap `json:"rectangles"`
	Ellipses   []ellSnap  `json:"ellipses"`
	Diamonds   []diaSnap  `json:"diamonds"`
	Lines      []lineSnap `json:"lines"`
	Arrows     []lineSnap `json:"arrows"`
	Paths      []pathSnap `json:"paths"`
	Images     []imgSnap  `json:"images"`
	Texts      []textSnap `json:"texts"`
	Locked     []uint64   `json:"locked"`
	NextID     uint64     `json:"nextId"`
}

type rectSnap struct {
	Rectangle
	ZIndex int `json:"zIndex"`
}
type ellSnap struct {
	Ellipse
	ZIndex int `json:"zIndex"`
}
type diaSnap struct {
	Diamond
	ZIndex int `json:"zIndex"`
}
type lineSnap struct {
	Line
	ZIndex int `json:"zIndex"`
}
type pathSnap struct {
	Path
	ZIndex int `json:"zIndex"`
}
type imgSnap struct {
	Image
	ZIndex int `json:"zIndex"`
}
type textSnap struct {
	Text
	ZIndex int `json:"zIndex"`
}

// Serialize renders the document as an opaque JSON snapshot string. The
// canonical z-order is encoded as a dense zIndex per element, 0 = back.
func (d *Document) Serialize() string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	zIndex := make(map[uint64]int, len(d.order))
	for i, id := range d.order {
		zIndex[id] = i
	}

	snap := snapshot{Locked: lockedIDs(d.locked), NextID: d.nextID}
	for id, r := range d.rectangles {
		snap.Rectangles = append(snap.Rectangles, rectSnap{*r, zIndex[id]})
	}
	for id, e := range d.ellipses {
		snap.Ellipses = append(snap.Ellipses, ellSnap{*e, zIndex[id]})
	}
	for id, s := range d.diamonds {
		snap.Diamonds = append(snap.Diamonds, diaSnap{*s, zIndex[id]})
	}
	for id, l := range d.lines {
		snap.Lines = append(snap.Lines, lineSnap{*l, zIndex[id]})
	}
	for id, a := range d.arrows {
		snap.Arrows = append(snap.Arrows, lineSnap{Line(*a), zIndex[id]})
	}
	for id, p := range d.paths {
		snap.Paths = append(snap.Paths, pathSnap{*p, zIndex[id]})
	}
	for id, im := range d.images {
		snap.Images = append(snap.Images, imgSnap{*im, zIndex[id]})
	}
	for id, t := range d.texts {
		snap.Texts = append(snap.Texts, textSnap{*t, zIndex[id]})
	}

	sortByZIndex(snap)

	b, err := json.Marshal(snap)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func lockedIDs(m map[uint64]bool) []uint64 {
	out := make([]uint64, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortByZIndex(s snapshot) {
	sort.Slice(s.Rectangles, func(i, j int) bool { return s.Rectangles[i].ZIndex < s.Rectangles[j].ZIndex })
	sort.Slice(s.Ellipses, func(i, j int) bool { return s.Ellipses[i].ZIndex < s.Ellipses[j].ZIndex })
	sort.Slice(s.Diamonds, func(i, j int) bool { return s.Diamonds[i].ZIndex < s.Diamonds[j].ZIndex })
	sort.Slice(s.Lines, func(i, j int) bool { return s.Lines[i].ZIndex < s.Lines[j].ZIndex })
	sort.Slice(s.Arrows, func(i, j int) bool { return s.Arrows[i].ZIndex < s.Arrows[j].ZIndex })
	sort.Slice(s.Paths, func(i, j int) bool { return s.Paths[i].ZIndex < s.Paths[j].ZIndex })
	sort.Slice(s.Images, func(i, j int) bool { return s.Images[i].ZIndex < s.Images[j].ZIndex })
	sort.Slice(s.Texts, func(i, j int) bool { return s.Texts[i].ZIndex < s.Texts[j].ZIndex })
}

// zOrdered pairs an id+kind with its stored zIndex so Deserialize can
// normalize arbitrary or drifted indices into a dense [0..n) ordering while
// preserving relative order.
type zOrdered struct {
	id     uint64
	k      kind
	zIndex int
}

// Deserialize replaces the document's content from a snapshot string
// produced by Serialize (or an older schema understood by the caller).
// Z-indices are normalized to a dense [0..n) range preserving relative
// order; this never reverse-engineers drifted or negative input indices,
// it simply re-ranks them.
func (d *Document) Deserialize(data string) error {
	var snap snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return fmt.Errorf("document: invalid snapshot: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.rectangles = make(map[uint64]*Rectangle, len(snap.Rectangles))
	d.ellipses = make(map[uint64]*Ellipse, len(snap.Ellipses))
	d.diamonds = make(map[uint64]*Diamond, len(snap.Diamonds))
	d.lines = make(map[uint64]*Line, len(snap.Lines))
	d.arrows = make(map[uint64]*Arrow, len(snap.Arrows))
	d.paths = make(map[uint64]*Path, len(snap.Paths))
	d.images = make(map[uint64]*Image, len(snap.Images))
	d.texts = make(map[uint64]*Text, len(snap.Texts))
	d.kinds = make(map[uint64]kind)
	d.locked = make(map[uint64]bool, len(snap.Locked))
	for _, id := range snap.Locked {
		d.locked[id] = true
	}

	var ordered []zOrdered
	for _, r := range snap.Rectangles {
		v := r.Rectangle
		d.rectangles[v.ID] = &v
		ordered = append(ordered, zOrdered{v.ID, kindRectangle, r.ZIndex})
	}
	for _, e := range snap.Ellipses {
		v := e.Ellipse
		d.ellipses[v.ID] = &v
		ordered = append(ordered, zOrdered{v.ID, kindEllipse, e.ZIndex})
	}
	for _, s := range snap.Diamonds {
		v := s.Diamond
		d.diamonds[v.ID] = &v
		ordered = append(ordered, zOrdered{v.ID, kindDiamond, s.ZIndex})
	}
	for _, l := range snap.Lines {
		v := l.Line
		d.lines[v.ID] = &v
		ordered = append(ordered, zOrdered{v.ID, kindLine, l.ZIndex})
	}
	for _, a := range snap.Arrows {
		v := Arrow(a.Line)
		d.arrows[v.ID] = &v
		ordered = append(ordered, zOrdered{v.ID, kindArrow, a.ZIndex})
	}
	for _, p := range snap.Paths {
		v := p.Path
		d.paths[v.ID] = &v
		ordered = append(ordered, zOrdered{v.ID, kindPath, p.ZIndex})
	}
	for _, im := range snap.Images {
		v := im.Image
		d.images[v.ID] = &v
		ordered = append(ordered, zOrdered{v.ID, kindImage, im.ZIndex})
	}
	for _, t := range snap.Texts {
		v := t.Text
		if v.FontSize == 0 {
			v.FontSize = defaultFontSize
		}
		d.texts[v.ID] = &v
		ordered = append(ordered, zOrdered{v.ID, kindText, t.ZIndex})
	}

	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].zIndex < ordered[j].zIndex })
	d.order = make([]uint64, len(ordered))
	for i, o := range ordered {
		d.order[i] = o.id
		d.kinds[o.id] = o.k
	}

	maxID := snap.NextID
	if maxID < 1 {
		maxID = 1
	}
	for id := range d.kinds {
		if id >= maxID {
			maxID = id + 1
		}
	}
	d.nextID = maxID
	return nil
}
