// Package document holds the in-memory vector scene the collaboration core
// mutates: shapes, text, images, paths, z-order and lock state. It is
// consumed by the operation applier and serialized to/from the wire as an
// opaque snapshot string.
package document

// Point is a 2D coordinate, serialized as {"x":..,"y":..}.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
