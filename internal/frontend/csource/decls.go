package csource

import (
	"fmt"
	"path"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/mvp-joe/cortex-index/internal/frontend"
)

// Decl is a C declaration.
type Decl struct {
	kind     frontend.DeclKind
	name     string
	usr      string
	parent   *Decl
	children []*Decl
	loc      frontend.Location
	def      bool
	doc      string
	occurs   []frontend.Occurrence
}

var _ frontend.Decl = (*Decl)(nil)

func (d *Decl) Kind() frontend.DeclKind            { return d.kind }
func (d *Decl) Name() string                       { return d.name }
func (d *Decl) USR() string                        { return d.usr }
func (d *Decl) Location() frontend.Location        { return d.loc }
func (d *Decl) IsDefinition() bool                 { return d.def }
func (d *Decl) Documentation() string              { return d.doc }
func (d *Decl) Occurrences() []frontend.Occurrence { return d.occurs }

// Relations is always empty: C has no inheritance or overriding.
func (d *Decl) Relations() []frontend.Relation { return nil }

func (d *Decl) Parent() frontend.Decl {
	if d.parent == nil {
		return nil
	}
	return d.parent
}

func (d *Decl) Children() []frontend.Decl {
	out := make([]frontend.Decl, len(d.children))
	for i, c := range d.children {
		out[i] = c
	}
	return out
}

var (
	declaratorKinds = map[string]bool{
		"identifier":               true,
		"init_declarator":          true,
		"pointer_declarator":       true,
		"array_declarator":         true,
		"function_declarator":      true,
		"parenthesized_declarator": true,
		"attributed_declarator":    true,
	}
	fieldDeclaratorKinds = map[string]bool{
		"field_identifier":         true,
		"pointer_declarator":       true,
		"array_declarator":         true,
		"function_declarator":      true,
		"parenthesized_declarator": true,
		"attributed_declarator":    true,
	}
	typedefDeclaratorKinds = map[string]bool{
		"type_identifier":          true,
		"pointer_declarator":       true,
		"array_declarator":         true,
		"function_declarator":      true,
		"parenthesized_declarator": true,
		"attributed_declarator":    true,
	}
)

// declBuilder turns the syntax of one file into declarations.
type declBuilder struct {
	file     *File
	source   []byte
	comments commentPolicy
	// skipBody reports whether a function definition's body is skipped.
	skipBody func(*Decl) bool
}

// topLevel builds the declarations introduced by a file-scope node.
func (b *declBuilder) topLevel(n *sitter.Node, doc string) []*Decl {
	switch n.Kind() {
	case "function_definition":
		if d := b.function(n, doc); d != nil {
			return []*Decl{d}
		}
	case "declaration":
		return b.declaration(n, nil, doc)
	case "type_definition":
		return b.typedef(n, nil, doc)
	case "struct_specifier", "union_specifier", "enum_specifier":
		if d := b.specifier(n, nil, "", doc); d != nil {
			return []*Decl{d}
		}
	case "preproc_def", "preproc_function_def":
		if d := b.macro(n, doc); d != nil {
			return []*Decl{d}
		}
	}
	return nil
}

func (b *declBuilder) newDecl(kind frontend.DeclKind, name, usr string, at *sitter.Node, parent *Decl) *Decl {
	d := &Decl{
		kind:   kind,
		name:   name,
		usr:    usr,
		parent: parent,
		loc:    frontend.Location{File: b.file, Line: line(at), Column: column(at)},
	}
	if parent != nil {
		parent.children = append(parent.children, d)
	}
	return d
}

func (b *declBuilder) function(n *sitter.Node, doc string) *Decl {
	declarator := n.ChildByFieldName("declarator")
	nameNode := declaratorName(declarator)
	if nameNode == nil {
		return nil
	}
	name := nodeText(nameNode, b.source)

	d := b.newDecl(frontend.DeclFunction, name, "c:@F@"+name, nameNode, nil)
	d.def = true
	d.doc = doc
	d.occurs = append(b.typeOccurrences(n.ChildByFieldName("type")), b.occurrences(declarator, nameNode, false)...)

	body := n.ChildByFieldName("body")
	if body == nil || (b.skipBody != nil && b.skipBody(d)) {
		return d
	}
	d.occurs = append(d.occurs, b.occurrences(body, nil, true)...)
	b.locals(body, d)
	return d
}

// locals builds the declarations nested in a function body under fn.
func (b *declBuilder) locals(body *sitter.Node, fn *Decl) {
	for _, n := range namedChildren(body) {
		walkTree(n, func(n *sitter.Node) bool {
			switch n.Kind() {
			case "declaration":
				b.declaration(n, fn, "")
				return false
			case "type_definition":
				b.typedef(n, fn, "")
				return false
			case "struct_specifier", "union_specifier", "enum_specifier":
				if n.ChildByFieldName("body") != nil {
					b.specifier(n, fn, "", "")
					return false
				}
			}
			return true
		})
	}
}

func (b *declBuilder) declaration(n *sitter.Node, parent *Decl, doc string) []*Decl {
	var out []*Decl
	typ := n.ChildByFieldName("type")
	if spec := b.specifier(typ, parent, "", doc); spec != nil {
		out = append(out, spec)
	}

	for _, dn := range namedChildren(n) {
		if !declaratorKinds[dn.Kind()] {
			continue
		}
		nameNode := declaratorName(dn)
		if nameNode == nil {
			continue
		}
		name := nodeText(nameNode, b.source)

		var d *Decl
		if isFunctionDeclarator(dn) {
			d = b.newDecl(frontend.DeclFunction, name, "c:@F@"+name, nameNode, parent)
		} else {
			d = b.newDecl(frontend.DeclVariable, name, scopedUSR(parent, "", name), nameNode, parent)
			d.def = !hasStorageClass(n, b.source, "extern")
		}
		d.doc = doc
		d.occurs = append(b.typeOccurrences(typ), b.occurrences(dn, nameNode, false)...)
		out = append(out, d)
	}
	return out
}

func (b *declBuilder) typedef(n *sitter.Node, parent *Decl, doc string) []*Decl {
	typ := n.ChildByFieldName("type")

	var declarators []*sitter.Node
	for _, dn := range namedChildren(n) {
		if sameNode(dn, typ) || !typedefDeclaratorKinds[dn.Kind()] {
			continue
		}
		if declaratorName(dn) != nil {
			declarators = append(declarators, dn)
		}
	}

	var out []*Decl
	first := ""
	if len(declarators) > 0 {
		first = nodeText(declaratorName(declarators[0]), b.source)
	}
	if spec := b.specifier(typ, parent, first, doc); spec != nil {
		out = append(out, spec)
	}

	for _, dn := range declarators {
		nameNode := declaratorName(dn)
		name := nodeText(nameNode, b.source)
		d := b.newDecl(frontend.DeclTypedef, name, scopedUSR(parent, "T", name), nameNode, parent)
		d.def = true
		d.doc = doc
		d.occurs = append(b.typeOccurrences(typ), b.occurrences(dn, nameNode, false)...)
		out = append(out, d)
	}
	return out
}

// specifier builds a struct, union or enum that has a body. typedefName
// names an anonymous specifier declared by a typedef.
func (b *declBuilder) specifier(n *sitter.Node, parent *Decl, typedefName, doc string) *Decl {
	if n == nil {
		return nil
	}
	kind, tag := specifierKind(n.Kind())
	if kind == "" {
		return nil
	}
	body := n.ChildByFieldName("body")
	if body == nil {
		return nil
	}

	at := n
	var name, usr string
	nameNode := n.ChildByFieldName("name")
	switch {
	case nameNode != nil:
		name = nodeText(nameNode, b.source)
		usr = "c:@" + tag + "@" + name
		if parent != nil && parent.kind == frontend.DeclFunction {
			usr = parent.usr + "@" + tag + "@" + name
		}
		at = nameNode
	case typedefName != "":
		name = typedefName
		usr = "c:@" + tag + "A@" + typedefName
	default:
		usr = fmt.Sprintf("c:%s@%d@%sa", path.Base(b.file.name), n.StartByte(), tag)
	}

	d := b.newDecl(kind, name, usr, at, parent)
	d.def = true
	d.doc = doc

	if kind == frontend.DeclEnum {
		for _, en := range namedChildren(body) {
			if en.Kind() != "enumerator" {
				continue
			}
			nm := en.ChildByFieldName("name")
			if nm == nil {
				continue
			}
			e := b.newDecl(frontend.DeclEnumerator, nodeText(nm, b.source), usr+"@"+nodeText(nm, b.source), nm, d)
			e.def = true
		}
		return d
	}

	b.eachWithDocs(body, func(fd *sitter.Node, fieldDoc string) error {
		if fd.Kind() != "field_declaration" {
			return nil
		}
		ftype := fd.ChildByFieldName("type")
		b.specifier(ftype, d, "", "")
		for _, dn := range namedChildren(fd) {
			if !fieldDeclaratorKinds[dn.Kind()] {
				continue
			}
			nameNode := declaratorName(dn)
			if nameNode == nil {
				continue
			}
			name := nodeText(nameNode, b.source)
			f := b.newDecl(frontend.DeclField, name, usr+"@FI@"+name, nameNode, d)
			f.def = true
			f.doc = fieldDoc
			f.occurs = append(b.typeOccurrences(ftype), b.occurrences(dn, nameNode, false)...)
		}
		return nil
	})
	return d
}

func (b *declBuilder) macro(n *sitter.Node, doc string) *Decl {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := nodeText(nameNode, b.source)
	d := b.newDecl(frontend.DeclMacro, name, "c:@macro@"+name, nameNode, nil)
	d.def = true
	d.doc = doc
	return d
}

// typeOccurrences returns the references made by a type specifier. A
// specifier with a body is a declaration of its own and references nothing.
func (b *declBuilder) typeOccurrences(typ *sitter.Node) []frontend.Occurrence {
	if typ == nil {
		return nil
	}
	if kind, _ := specifierKind(typ.Kind()); kind != "" && typ.ChildByFieldName("body") != nil {
		return nil
	}
	return b.occurrences(typ, nil, false)
}

// occurrences collects calls and type references under n, skipping the
// declared name itself. In a function body, nested declarations are left to
// the local declarations that own them.
func (b *declBuilder) occurrences(n, name *sitter.Node, inBody bool) []frontend.Occurrence {
	var out []frontend.Occurrence
	walkTree(n, func(n *sitter.Node) bool {
		if sameNode(n, name) {
			return false
		}
		switch n.Kind() {
		case "declaration", "type_definition":
			return !inBody
		case "call_expression":
			fn := n.ChildByFieldName("function")
			if fn != nil && fn.Kind() == "identifier" {
				out = append(out, b.occurrence("c:@F@", fn, frontend.RoleCall|frontend.RoleReference))
			}
		case "type_identifier":
			out = append(out, b.occurrence("c:@T@", n, frontend.RoleReference))
		case "struct_specifier", "union_specifier", "enum_specifier":
			if n.ChildByFieldName("body") != nil {
				return false
			}
			if nm := n.ChildByFieldName("name"); nm != nil {
				_, tag := specifierKind(n.Kind())
				out = append(out, b.occurrence("c:@"+tag+"@", nm, frontend.RoleReference))
			}
			return false
		}
		return true
	})
	return out
}

func (b *declBuilder) occurrence(prefix string, n *sitter.Node, roles frontend.Role) frontend.Occurrence {
	name := nodeText(n, b.source)
	return frontend.Occurrence{
		USR:      prefix + name,
		Name:     name,
		Roles:    roles,
		Location: frontend.Location{File: b.file, Line: line(n), Column: column(n)},
	}
}

// eachWithDocs calls fn for every named non-comment child of container with
// the documentation of the comments directly above it.
func (b *declBuilder) eachWithDocs(container *sitter.Node, fn func(n *sitter.Node, doc string) error) error {
	var pending []*sitter.Node
	for _, n := range namedChildren(container) {
		if n.Kind() == "comment" {
			if len(pending) > 0 && int(n.StartPosition().Row) > int(pending[len(pending)-1].EndPosition().Row)+1 {
				pending = pending[:0]
			}
			pending = append(pending, n)
			continue
		}
		doc := b.comments.documentation(pending, n, b.source, b.file.system)
		pending = nil
		if err := fn(n, doc); err != nil {
			return err
		}
	}
	return nil
}

func specifierKind(kind string) (frontend.DeclKind, string) {
	switch kind {
	case "struct_specifier":
		return frontend.DeclStruct, "S"
	case "union_specifier":
		return frontend.DeclUnion, "U"
	case "enum_specifier":
		return frontend.DeclEnum, "E"
	}
	return "", ""
}

func scopedUSR(parent *Decl, tag, name string) string {
	prefix := "c:@"
	if parent != nil && parent.kind == frontend.DeclFunction {
		prefix = parent.usr + "@"
	}
	if tag != "" {
		return prefix + tag + "@" + name
	}
	return prefix + name
}

// declaratorName finds the identifier a declarator declares.
func declaratorName(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	switch n.Kind() {
	case "identifier", "field_identifier", "type_identifier":
		return n
	case "function_declarator", "pointer_declarator", "array_declarator",
		"init_declarator", "attributed_declarator":
		return declaratorName(n.ChildByFieldName("declarator"))
	case "parenthesized_declarator":
		for _, c := range namedChildren(n) {
			if name := declaratorName(c); name != nil {
				return name
			}
		}
	}
	return nil
}

// isFunctionDeclarator reports whether n declares a function rather than a
// pointer to one.
func isFunctionDeclarator(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Kind() {
	case "function_declarator":
		inner := n.ChildByFieldName("declarator")
		return inner != nil && (inner.Kind() == "identifier" || isFunctionDeclarator(inner))
	case "pointer_declarator", "init_declarator", "attributed_declarator":
		return isFunctionDeclarator(n.ChildByFieldName("declarator"))
	}
	return false
}

func hasStorageClass(n *sitter.Node, source []byte, class string) bool {
	for _, c := range namedChildren(n) {
		if c.Kind() == "storage_class_specifier" && nodeText(c, source) == class {
			return true
		}
	}
	return false
}
