package reticle

// AnchorVisitTracker remembers every plane the indicator has settled on.
// The set only grows.
type AnchorVisitTracker struct {
	visited map[SurfaceID]struct{}
}

// NewAnchorVisitTracker creates an empty tracker
func NewAnchorVisitTracker() *AnchorVisitTracker {
	return &AnchorVisitTracker{visited: make(map[SurfaceID]struct{})}
}

// IsKnown reports whether id has been visited before
func (t *AnchorVisitTracker) IsKnown(id SurfaceID) bool {
	_, ok := t.visited[id]
	return ok
}

// MarkVisited records id; repeated calls are no-ops
func (t *AnchorVisitTracker) MarkVisited(id SurfaceID) {
	t.visited[id] = struct{}{}
}

// Count returns the number of distinct surfaces seen
func (t *AnchorVisitTracker) Count() int {
	return len(t.visited)
}
