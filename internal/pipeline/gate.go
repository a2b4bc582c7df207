package pipeline

import "slices"

type (
	// Network names the chain a run executes against.
	Network string

	// Networks is a set of networks. A nil set targets every network.
	Networks map[Network]struct{}
)

func NewNetworks(names ...string) Networks {
	set := make(Networks, len(names))
	for _, name := range names {
		set[Network(name)] = struct{}{}
	}
	return set
}

func (n Networks) Contains(network Network) bool {
	_, ok := n[network]
	return ok
}

// Sorted returns the members in lexical order.
func (n Networks) Sorted() []string {
	out := make([]string, 0, len(n))
	for network := range n {
		out = append(out, string(network))
	}
	slices.Sort(out)
	return out
}

// IsApplicable reports whether a step targeting targets should act on network.
func IsApplicable(network Network, targets Networks) bool {
	if targets == nil {
		return true
	}
	return targets.Contains(network)
}
