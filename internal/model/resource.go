package model

type ResourceKind string

const (
	ResourceKindRoom ResourceKind = "room"
	ResourceKindBed  ResourceKind = "bed"
)

// Resource is an exam room or short-stay bed. IsAvailable is the logical
// negation of "held by exactly one active encounter" and is flipped only by
// the allocator.
type Resource struct {
	Base
	Identifier  string       `db:"identifier" json:"identifier"`
	Kind        ResourceKind `db:"kind" json:"kind"`
	IsAvailable bool         `db:"is_available" json:"is_available"`
}

type CreateResourceRequest struct {
	Identifier string       `json:"identifier" validate:"required,max=64"`
	Kind       ResourceKind `json:"kind" validate:"required,oneof=room bed"`
}
