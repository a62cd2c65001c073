package operation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a-khushal/rustboard/internal/document"
)

// fakeResolver mimics session.Session's id-remap table without depending on
// the session package.
type fakeResolver struct {
	m map[string]map[uint64]uint64
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{m: make(map[string]map[uint64]uint64)}
}

func (f *fakeResolver) Record(clientID string, localID, canonicalID uint64) {
	if f.m[clientID] == nil {
		f.m[clientID] = make(map[uint64]uint64)
	}
	f.m[clientID][localID] = canonicalID
}

func (f *fakeResolver) Resolve(clientID string, localID uint64) uint64 {
	if by, ok := f.m[clientID]; ok {
		if canonical, ok := by[localID]; ok {
			return canonical
		}
	}
	return localID
}

func TestApplyAddRemapsLocalIDToCanonical(t *testing.T) {
	doc := document.New()
	resolver := newFakeResolver()

	add := Operation{Op: AddRectangle, ID: 1, Position: &document.Point{X: 1, Y: 2}, Width: 10, Height: 20}
	res, err := Apply(add, doc, "client-a", resolver)
	require.NoError(t, err)
	require.NotNil(t, res.CanonicalID)
	canonical := *res.CanonicalID

	move := Operation{Op: MoveRectangle, ID: 1, Position: &document.Point{X: 5, Y: 5}}
	_, err = Apply(move, doc, "client-a", resolver)
	require.NoError(t, err)

	assert.True(t, doc.Exists(canonical))
	snap := doc.Serialize()
	assert.Contains(t, snap, `"x":5`)
}

func TestApplyDifferentClientsHaveIndependentLocalIDSpaces(t *testing.T) {
	doc := document.New()
	resolver := newFakeResolver()

	a, err := Apply(Operation{Op: AddRectangle, ID: 1, Width: 1, Height: 1}, doc, "client-a", resolver)
	require.NoError(t, err)
	b, err := Apply(Operation{Op: AddRectangle, ID: 1, Width: 1, Height: 1}, doc, "client-b", resolver)
	require.NoError(t, err)

	assert.NotEqual(t, *a.CanonicalID, *b.CanonicalID)
	assert.Equal(t, *a.CanonicalID, resolver.Resolve("client-a", 1))
	assert.Equal(t, *b.CanonicalID, resolver.Resolve("client-b", 1))
}

// decodeOp goes through json.Unmarshal so the tri-state fillColor handling
// is exercised against real wire bytes, not hand-built structs.
func decodeOp(t *testing.T, raw string) Operation {
	t.Helper()
	var op Operation
	require.NoError(t, json.Unmarshal([]byte(raw), &op))
	return op
}

func TestApplyStyleFillColorTriState(t *testing.T) {
	doc := document.New()
	resolver := newFakeResolver()

	added, err := Apply(Operation{Op: AddRectangle, ID: 1, Width: 1, Height: 1}, doc, "c", resolver)
	require.NoError(t, err)
	require.NotNil(t, added.CanonicalID)

	_, err = Apply(decodeOp(t, `{"op":"SetRectangleStyle","id":1,"fillColor":"#ff0000"}`), doc, "c", resolver)
	require.NoError(t, err)
	assert.Contains(t, doc.Serialize(), `"fillColor":"#ff0000"`)

	// a field that is present but null clears the fill
	_, err = Apply(decodeOp(t, `{"op":"SetRectangleStyle","id":1,"fillColor":null}`), doc, "c", resolver)
	require.NoError(t, err)
	assert.Contains(t, doc.Serialize(), `"fillColor":null`)

	// an absent field leaves the fill alone
	_, err = Apply(decodeOp(t, `{"op":"SetRectangleStyle","id":1,"fillColor":"#00ff00"}`), doc, "c", resolver)
	require.NoError(t, err)
	_, err = Apply(decodeOp(t, `{"op":"SetRectangleStyle","id":1,"lineWidth":3}`), doc, "c", resolver)
	require.NoError(t, err)
	assert.Contains(t, doc.Serialize(), `"fillColor":"#00ff00"`)
}

func TestApplyUnresolvableIDIsNoOp(t *testing.T) {
	doc := document.New()
	resolver := newFakeResolver()

	_, err := Apply(Operation{Op: MoveRectangle, ID: 999, Position: &document.Point{X: 1, Y: 1}}, doc, "c", resolver)
	assert.NoError(t, err)
}

func TestApplyUnknownOpReturnsError(t *testing.T) {
	doc := document.New()
	resolver := newFakeResolver()
	_, err := Apply(Operation{Op: "Bogus"}, doc, "c", resolver)
	assert.Error(t, err)
}

func TestApplyFullSyncReplacesDocument(t *testing.T) {
	doc := document.New()
	resolver := newFakeResolver()
	doc.AddRectangleWithoutSnapshot(document.Point{}, 1, 1)

	other := document.New()
	other.AddEllipseWithoutSnapshot(document.Point{X: 3, Y: 3}, 5, 5)
	data := other.Serialize()

	_, err := Apply(Operation{Op: FullSync, Data: &data}, doc, "c", resolver)
	require.NoError(t, err)
	assert.Equal(t, other.Serialize(), doc.Serialize())
}

func TestApplyZOrderOps(t *testing.T) {
	doc := document.New()
	resolver := newFakeResolver()
	a, _ := Apply(Operation{Op: AddRectangle, ID: 1, Width: 1, Height: 1}, doc, "c", resolver)
	b, _ := Apply(Operation{Op: AddRectangle, ID: 2, Width: 1, Height: 1}, doc, "c", resolver)

	_, err := Apply(Operation{Op: SendToBack, ID: 2}, doc, "c", resolver)
	require.NoError(t, err)

	// Serialize orders elements back-most first; b was sent to the back.
	var snap struct {
		Rectangles []struct {
			ID uint64 `json:"id"`
		} `json:"rectangles"`
	}
	require.NoError(t, json.Unmarshal([]byte(doc.Serialize()), &snap))
	require.Len(t, snap.Rectangles, 2)
	assert.Equal(t, *b.CanonicalID, snap.Rectangles[0].ID)
	assert.Equal(t, *a.CanonicalID, snap.Rectangles[1].ID)
}
