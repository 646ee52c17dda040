package graph

// Pool is a named admission-control bucket. Depth 0 means unlimited: any
// number of edges bound to that pool may run concurrently. CurrentUse
// tracks the sum of weights of edges currently admitted.
type Pool struct {
	Name       string
	Depth      int
	CurrentUse int
}

// ConsolePoolName is the name of the reserved single-slot pool that owns
// exclusive terminal access.
const ConsolePoolName = "console"

// NewPool constructs a pool with the given depth (0 = unlimited).
func NewPool(name string, depth int) *Pool {
	return &Pool{Name: name, Depth: depth}
}

// NewConsolePool constructs the reserved console pool: depth 1, always.
func NewConsolePool() *Pool {
	return &Pool{Name: ConsolePoolName, Depth: 1}
}

// IsUnlimited reports whether this pool imposes no admission cap.
func (p *Pool) IsUnlimited() bool { return p.Depth == 0 }
