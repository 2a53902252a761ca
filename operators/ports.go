package operators

import (
	"fmt"
	"slices"

	"golang.org/x/exp/constraints"

	"github.com/birdayz/kflow/kmessage"
	"github.com/birdayz/kflow/koperator"
)

// portPolicy is the per-port member of a join's "policies" object.
type portPolicy struct {
	Eager bool `json:"eager"`
}

// portKinds resolves a "portTypes" parameter. An empty list means n ports of
// kind def.
func portKinds(types []string, n int, def kmessage.Kind) ([]kmessage.Kind, error) {
	if len(types) == 0 {
		return repeat(def, n), nil
	}
	if len(types) != n {
		return nil, koperator.Invalid("portTypes", "has %d entries, want %d", len(types), n)
	}
	kinds := make([]kmessage.Kind, n)
	for i, s := range types {
		k, err := kmessage.ParseKind(s)
		if err != nil {
			return nil, koperator.Invalid(fmt.Sprintf("portTypes[%d]", i), "%v", err)
		}
		kinds[i] = k
	}
	return kinds, nil
}

// joinPorts declares data inputs i1..iN of the given kinds with the eager
// flags taken from policies. Every policy must name one of those inputs.
func joinPorts(kinds []kmessage.Kind, policies map[string]portPolicy) ([]koperator.PortSpec, error) {
	ports := make([]koperator.PortSpec, len(kinds))
	known := make(map[string]bool, len(kinds))
	for i, k := range kinds {
		name := koperator.DataPortName(i + 1)
		ports[i] = koperator.DataPort(name, k, 0)
		ports[i].Eager = policies[name].Eager
		known[name] = true
	}
	names := make([]string, 0, len(policies))
	for name := range policies {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if !known[name] {
			return nil, fmt.Errorf("%w: policies.%s", koperator.ErrUnknownPort, name)
		}
	}
	return ports, nil
}

// outputPorts declares o1..oN of the given kinds.
func outputPorts(kinds ...kmessage.Kind) []koperator.PortSpec {
	ports := make([]koperator.PortSpec, len(kinds))
	for i, k := range kinds {
		ports[i] = koperator.OutputPort(koperator.OutputPortName(i+1), k)
	}
	return ports
}

func repeat(k kmessage.Kind, n int) []kmessage.Kind {
	kinds := make([]kmessage.Kind, n)
	for i := range kinds {
		kinds[i] = k
	}
	return kinds
}

// extremum scans xs for the element that wins every comparison against the
// others. xs must not be empty.
func extremum[T constraints.Ordered](xs []T, better func(a, b T) bool) T {
	best := xs[0]
	for _, x := range xs[1:] {
		if better(x, best) {
			best = x
		}
	}
	return best
}

func greater[T constraints.Ordered](a, b T) bool { return a > b }

func less[T constraints.Ordered](a, b T) bool { return a < b }
