package srcinfo

import (
	"fmt"
	"hash/fnv"
)

// Namer hands out fresh names that are unique within one procedure's
// rewrite history. Unlike a single process-wide counter, a Namer is seeded
// from the identity of the procedure root it serves, so scheduling the same
// seed procedure in two separate sessions produces byte-identical fresh
// names: it is deterministic per root procedure.
type Namer struct {
	seed    uint32
	counter uint32
	seen    map[string]bool
}

// NewNamer seeds a Namer from a procedure's name and argument names. Two
// Namers built from the same (rootName, argNames) pair produce the same
// sequence of fresh names.
func NewNamer(rootName string, argNames []string) *Namer {
	h := fnv.New32a()
	_, _ = h.Write([]byte(rootName))
	for _, a := range argNames {
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(a))
	}
	return &Namer{seed: h.Sum32(), seen: map[string]bool{}}
}

// Fresh returns a name derived from base that has not previously been
// returned by this Namer and does not collide with an already-declared name
// passed via Reserve.
func (n *Namer) Fresh(base string) string {
	if base == "" {
		base = "tmp"
	}
	for {
		n.counter++
		name := fmt.Sprintf("%s_%x%d", base, n.seed&0xff, n.counter)
		if !n.seen[name] {
			n.seen[name] = true
			return name
		}
	}
}

// Reserve records name as already taken so future Fresh calls never return
// it, even if it wasn't generated by this Namer (e.g. a user-chosen name).
func (n *Namer) Reserve(name string) {
	n.seen[name] = true
}
