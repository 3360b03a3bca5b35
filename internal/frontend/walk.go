package frontend

// Walk visits decls depth-first in order. A declaration for which descend
// returns false is neither visited nor walked into.
func Walk(decls []Decl, descend func(Decl) bool, visit func(Decl)) {
	for _, d := range decls {
		if d == nil {
			continue
		}
		if descend != nil && !descend(d) {
			continue
		}
		visit(d)
		Walk(d.Children(), descend, visit)
	}
}

// EnclosingFunction returns the nearest function enclosing d, or nil.
func EnclosingFunction(d Decl) Decl {
	for p := d.Parent(); p != nil; p = p.Parent() {
		if p.Kind() == DeclFunction {
			return p
		}
	}
	return nil
}
