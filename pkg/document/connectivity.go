package document

// Produces returns the argument names an input feeds into the graph. An
// input without arguments produces a tensor carrying its own name.
func (in Input) Produces() []string {
	names := argumentNames(in.Arguments, false)
	if len(in.Arguments) == 0 {
		return []string{in.Name}
	}
	return names
}

// Consumes returns the argument names an output reads from the graph. An
// output without arguments consumes nothing and is connected only through
// explicit edges.
func (out Output) Consumes() []string {
	return argumentNames(out.Arguments, false)
}

// Consumes returns the argument names a node reads: its non-initializer
// input arguments followed by its control dependencies. Unnamed arguments
// (optional inputs left empty) are skipped.
func (n Node) Consumes() []string {
	var names []string
	for _, p := range n.Inputs {
		names = append(names, argumentNames(p.Arguments, true)...)
	}
	names = append(names, argumentNames(n.ControlDependencies, false)...)
	return names
}

// Produces returns the argument names a node writes. For fused nodes the
// outputs of the last chain link take precedence when it declares any.
func (n Node) Produces() []string {
	outputs := n.Outputs
	if len(n.Chain) > 0 {
		if last := n.Chain[len(n.Chain)-1].Outputs; len(last) > 0 {
			outputs = last
		}
	}
	var names []string
	for _, p := range outputs {
		names = append(names, argumentNames(p.Arguments, false)...)
	}
	return names
}

func argumentNames(args []Argument, skipInitializers bool) []string {
	var names []string
	for _, a := range args {
		if a.Name == "" {
			continue
		}
		if skipInitializers && a.Initializer {
			continue
		}
		names = append(names, a.Name)
	}
	return names
}
