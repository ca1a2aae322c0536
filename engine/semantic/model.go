package semantic

// TenantKey is the payload field used for tenant isolation. Points that
// should be reachable through tenant-filtered search must carry it; the
// store does not enforce this.
const TenantKey = "tenant_id"

// VectorPoint is a caller-owned record to insert. Any ID set by the caller
// is ignored: Insert assigns a fresh random UUID to every point.
type VectorPoint struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}
