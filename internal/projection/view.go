package projection

import (
	"github.com/agentic-research/iotree/api"
	"github.com/agentic-research/iotree/internal/graph"
)

// View returns the JSON view of the current tree.
func (m *Model) View() *api.Tree {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return View(m.tree)
}

// View converts an assembled tree to its JSON view.
func View(tree *graph.Tree) *api.Tree {
	v := &api.Tree{
		Version:  api.Version,
		Document: tree.Document.Key(),
		Headers:  tree.Root.Values(),
		Modules:  make([]api.Module, 0, tree.Document.Len()),
	}
	for _, mod := range tree.Document.Children() {
		vm := api.Module{
			Hardware: mod.Key(),
			Name:     mod.Value(graph.ColHardwareComment),
			Groups:   make([]api.Group, 0, mod.Len()),
		}
		for _, g := range mod.Children() {
			vm.Groups = append(vm.Groups, api.Group{
				Name:      g.Key(),
				Endpoints: endpoints(g),
			})
		}
		v.Modules = append(v.Modules, vm)
	}
	return v
}

func endpoints(parent *graph.Node) []api.Endpoint {
	out := make([]api.Endpoint, 0, parent.Len())
	for _, n := range parent.Children() {
		ep := api.Endpoint{
			Hardware:         n.Value(graph.ColHardware),
			HardwareComment:  n.Value(graph.ColHardwareComment),
			Parameter:        n.Value(graph.ColParameter),
			ParameterComment: n.Value(graph.ColParameterComment),
			Path:             n.Path(),
		}
		if n.Len() > 0 {
			ep.Children = endpoints(n)
		}
		out = append(out, ep)
	}
	return out
}
