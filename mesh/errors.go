package mesh

import "errors"

var (
	// ErrConfig is returned when the mesh cannot be constructed from the
	// supplied configuration.
	ErrConfig = errors.New("mesh: invalid configuration")

	// ErrAdjacency signals a broken vertex/element relation or a boundary
	// chain that fails to close. It indicates a topology-mutation bug and is
	// delivered by panic: the run must abort rather than continue on a
	// corrupted mesh.
	ErrAdjacency = errors.New("mesh: adjacency invariant violated")

	// ErrNotAdjacent is returned when a geographic distance is requested
	// between vertices that share no element. The caller can recover.
	ErrNotAdjacent = errors.New("mesh: vertices do not share an element")
)
