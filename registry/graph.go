package registry

// EdgeType classifies how a dependency affects its dependent's health.
type EdgeType int

const (
	// Required means the dependent cannot function without the
	// dependency: UNHEALTHY/OFFLINE propagates as UNHEALTHY.
	Required EdgeType = iota
	// Optional means the dependent degrades but keeps functioning:
	// UNHEALTHY/OFFLINE propagates as DEGRADED.
	Optional
	// Fallback marks a dependency used only after a Required or
	// Optional dependency has failed. It does not itself propagate.
	Fallback
)

// String names an EdgeType.
func (t EdgeType) String() string {
	switch t {
	case Required:
		return "REQUIRED"
	case Optional:
		return "OPTIONAL"
	case Fallback:
		return "FALLBACK"
	default:
		return "UNKNOWN"
	}
}

// Edge is a typed, weighted dependency from one service onto another.
type Edge struct {
	Target string
	Type   EdgeType
	Weight float64
}

// detectCycles runs DFS with a recursion stack over the dependency
// graph (service -> its declared dependencies) and returns every cycle
// found as a slice of service names closing back on its first element.
// Cycles are reported, never broken.
func detectCycles(deps map[string][]Edge) [][]string {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(deps))
	var cycles [][]string

	var stack []string
	var visit func(name string)
	visit = func(name string) {
		state[name] = visiting
		stack = append(stack, name)

		for _, e := range deps[name] {
			switch state[e.Target] {
			case unvisited:
				visit(e.Target)
			case visiting:
				// Found a back-edge into the current stack: extract the
				// cycle from its first occurrence onward.
				for i, s := range stack {
					if s == e.Target {
						cycle := append([]string{}, stack[i:]...)
						cycle = append(cycle, e.Target)
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[name] = done
	}

	for name := range deps {
		if state[name] == unvisited {
			visit(name)
		}
	}
	return cycles
}
