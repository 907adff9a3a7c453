package prover

// VarID identifies one tracked quantity within a Context. 0 is "no id".
type VarID int

// Registry hands out stable VarIDs for tracking keys. It only grows:
// facts removed by a rollback may be re-recorded later and must keep
// referring to the same quantity.
type Registry struct {
	ids    map[int64]VarID
	labels []string // labels[id] for id >= 1
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		ids:    make(map[int64]VarID),
		labels: []string{""},
	}
}

// VarID returns the id for key, allocating the next one on first sight.
func (r *Registry) VarID(key int64, label string) VarID {
	if id, ok := r.ids[key]; ok {
		return id
	}
	id := VarID(len(r.labels))
	r.ids[key] = id
	r.labels = append(r.labels, label)
	return id
}

// Lookup returns the id for key without allocating.
func (r *Registry) Lookup(key int64) (VarID, bool) {
	id, ok := r.ids[key]
	return id, ok
}

// Label returns the display text recorded when id was issued.
func (r *Registry) Label(id VarID) string {
	if id <= 0 || int(id) >= len(r.labels) {
		return "0"
	}
	return r.labels[id]
}

// Len is the number of ids issued.
func (r *Registry) Len() int {
	return len(r.labels) - 1
}

// trackingKey derives the registry key of a trackable node: the symbol
// identity for references, its negation for a length or high bound of a
// collection. min nodes have no key.
func trackingKey(n Node) (int64, bool) {
	switch n.Kind() {
	case KindSym:
		return n.Symbol().ID(), true
	case KindCall:
		if isLengthLike(n.Op()) {
			args := n.Operands()
			if len(args) == 1 && args[0].Kind() == KindSym {
				return -args[0].Symbol().ID(), true
			}
		}
	}
	return 0, false
}

func lengthLabel(n Node) string {
	args := n.Operands()
	if len(args) == 1 {
		return "len(" + args[0].String() + ")"
	}
	return n.String()
}
