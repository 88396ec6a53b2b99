package transpile

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/tildeio/routerbuild/internal/builderr"
)

type dep struct {
	id    string
	local string
	bound bool // false for side-effect only imports
}

// binding is an imported name. An empty name binds the whole namespace.
type binding struct {
	dep  *dep
	name string
}

func (b binding) expr() string {
	if b.name == "" {
		return b.dep.local
	}
	return member(b.dep.local, b.name)
}

type export struct {
	name  string
	expr  string
	local string // set for `export { local as name }`, resolved once all imports are known
}

type edit struct {
	start, end int
	text       string
}

type module struct {
	path   string
	src    []byte
	parser *sitter.Parser
	tree   *sitter.Tree
	root   *sitter.Node

	exportsVar string
	used       map[string]bool
	deps       []*dep
	depsByID   map[string]*dep
	imports    map[string]binding
	exports    []export
	stars      []*dep
	edits      []edit
}

func parse(ctx context.Context, p string, src []byte) (*module, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())
	t, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		parser.Close()
		return nil, &builderr.TranspileError{Path: p, Msg: "parse", Err: err}
	}
	m := &module{
		path:     p,
		src:      src,
		parser:   parser,
		tree:     t,
		root:     t.RootNode(),
		used:     map[string]bool{},
		depsByID: map[string]*dep{},
		imports:  map[string]binding{},
	}
	if m.root.HasError() {
		msg := syntaxError(m.root)
		m.close()
		return nil, &builderr.TranspileError{Path: p, Msg: msg}
	}
	return m, nil
}

func (m *module) close() {
	m.tree.Close()
	m.parser.Close()
}

func syntaxError(n *sitter.Node) string {
	if n.Type() == "ERROR" || n.IsMissing() {
		pt := n.StartPoint()
		return fmt.Sprintf("syntax error at %d:%d", pt.Row+1, pt.Column+1)
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c.HasError() || c.IsMissing() {
			return syntaxError(c)
		}
	}
	return "syntax error"
}

func (m *module) text(n *sitter.Node) string {
	return n.Content(m.src)
}

// analyze records the module's imports and exports and plans the edits that
// remove module syntax from the body.
func (m *module) analyze(id string, format Format, resolve Resolver) error {
	identifiers(m.root, m.src, m.used)
	m.exportsVar = "exports"
	if format == AMD {
		m.exportsVar = m.unique("_exports")
	}

	for i := 0; i < int(m.root.NamedChildCount()); i++ {
		n := m.root.NamedChild(i)
		var err error
		switch n.Type() {
		case "import_statement":
			err = m.importStatement(n, id, resolve)
		case "export_statement":
			err = m.exportStatement(n, id, resolve)
		}
		if err != nil {
			return err
		}
	}

	for i, e := range m.exports {
		if e.local == "" {
			continue
		}
		m.exports[i].expr = e.local
		if b, ok := m.imports[e.local]; ok {
			m.exports[i].expr = b.expr()
		}
	}

	m.references(m.root, nil)
	return nil
}

func (m *module) dependency(n *sitter.Node, parentID string, resolve Resolver) (*dep, error) {
	spec, err := m.stringValue(n)
	if err != nil {
		return nil, err
	}
	id, err := resolve(spec, parentID)
	if err != nil {
		return nil, &builderr.TranspileError{Path: m.path, Msg: fmt.Sprintf("unresolved import %q", spec), Err: err}
	}
	if d, ok := m.depsByID[id]; ok {
		return d, nil
	}
	d := &dep{id: id, local: m.unique(depName(spec))}
	m.deps = append(m.deps, d)
	m.depsByID[id] = d
	return d, nil
}

func (m *module) importStatement(n *sitter.Node, parentID string, resolve Resolver) error {
	d, err := m.dependency(n.ChildByFieldName("source"), parentID, resolve)
	if err != nil {
		return err
	}
	m.remove(n)

	clause := namedChild(n, "import_clause")
	if clause == nil {
		return nil
	}
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		c := clause.NamedChild(i)
		switch c.Type() {
		case "identifier":
			m.bind(m.text(c), binding{dep: d, name: "default"})
		case "namespace_import":
			if ident := namedChild(c, "identifier"); ident != nil {
				m.bind(m.text(ident), binding{dep: d})
			}
		case "named_imports":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				spec := c.NamedChild(j)
				if spec.Type() != "import_specifier" {
					continue
				}
				name := spec.ChildByFieldName("name")
				local := name
				if alias := spec.ChildByFieldName("alias"); alias != nil {
					local = alias
				}
				imported, err := m.nameValue(name)
				if err != nil {
					return err
				}
				m.bind(m.text(local), binding{dep: d, name: imported})
			}
		}
	}
	return nil
}

func (m *module) bind(local string, b binding) {
	b.dep.bound = true
	m.imports[local] = b
}

func (m *module) exportStatement(n *sitter.Node, parentID string, resolve Resolver) error {
	source := n.ChildByFieldName("source")
	decl := n.ChildByFieldName("declaration")
	value := n.ChildByFieldName("value")

	switch {
	case source != nil:
		d, err := m.dependency(source, parentID, resolve)
		if err != nil {
			return err
		}
		d.bound = true
		m.remove(n)
		if clause := namedChild(n, "export_clause"); clause != nil {
			return m.exportClause(clause, func(name, exported string) {
				m.exports = append(m.exports, export{name: exported, expr: member(d.local, name)})
			})
		}
		if ns := namedChild(n, "namespace_export"); ns != nil && ns.NamedChildCount() > 0 {
			exported, err := m.nameValue(ns.NamedChild(0))
			if err != nil {
				return err
			}
			m.exports = append(m.exports, export{name: exported, expr: d.local})
			return nil
		}
		m.stars = append(m.stars, d)

	case decl != nil:
		m.edits = append(m.edits, edit{start: int(n.StartByte()), end: int(decl.StartByte())})
		// Anonymous default functions and classes parse as a value, so a
		// default declaration always has a name.
		if name := decl.ChildByFieldName("name"); name != nil && hasToken(n, "default") {
			m.exports = append(m.exports, export{name: "default", expr: m.text(name)})
			return nil
		}
		for _, name := range m.declaredNames(decl) {
			m.exports = append(m.exports, export{name: name, expr: name})
		}

	case value != nil:
		local := m.unique("_default")
		m.edits = append(m.edits, edit{start: int(n.StartByte()), end: int(value.StartByte()), text: "var " + local + " = "})
		if !strings.HasSuffix(strings.TrimSpace(m.text(n)), ";") {
			m.edits = append(m.edits, edit{start: int(n.EndByte()), end: int(n.EndByte()), text: ";"})
		}
		m.exports = append(m.exports, export{name: "default", expr: local})

	default:
		m.remove(n)
		if clause := namedChild(n, "export_clause"); clause != nil {
			return m.exportClause(clause, func(name, exported string) {
				m.exports = append(m.exports, export{name: exported, local: name})
			})
		}
	}
	return nil
}

func (m *module) exportClause(clause *sitter.Node, fn func(name, exported string)) error {
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		spec := clause.NamedChild(i)
		if spec.Type() != "export_specifier" {
			continue
		}
		name, err := m.nameValue(spec.ChildByFieldName("name"))
		if err != nil {
			return err
		}
		exported := name
		if alias := spec.ChildByFieldName("alias"); alias != nil {
			if exported, err = m.nameValue(alias); err != nil {
				return err
			}
		}
		fn(name, exported)
	}
	return nil
}

func (m *module) declaredNames(decl *sitter.Node) []string {
	var names []string
	switch decl.Type() {
	case "lexical_declaration", "variable_declaration":
		for i := 0; i < int(decl.NamedChildCount()); i++ {
			if c := decl.NamedChild(i); c.Type() == "variable_declarator" {
				names = m.patternNames(c.ChildByFieldName("name"), names)
			}
		}
	default:
		if name := decl.ChildByFieldName("name"); name != nil {
			names = append(names, m.text(name))
		}
	}
	return names
}

func (m *module) patternNames(n *sitter.Node, names []string) []string {
	if n == nil {
		return names
	}
	switch n.Type() {
	case "identifier", "shorthand_property_identifier_pattern":
		return append(names, m.text(n))
	case "pair_pattern":
		return m.patternNames(n.ChildByFieldName("value"), names)
	case "assignment_pattern", "object_assignment_pattern":
		return m.patternNames(n.ChildByFieldName("left"), names)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		names = m.patternNames(n.NamedChild(i), names)
	}
	return names
}

// references rewrites every use of an imported binding into a member access
// on its dependency so that the binding stays live. hidden holds the imported
// names redeclared by an enclosing function or block; uses of those refer to
// the local declaration and are left alone.
func (m *module) references(n *sitter.Node, hidden map[string]bool) {
	switch n.Type() {
	case "import_statement":
		return
	case "export_statement":
		if n.ChildByFieldName("declaration") == nil && n.ChildByFieldName("value") == nil {
			return
		}
	case "identifier", "shorthand_property_identifier":
		name := m.text(n)
		b, ok := m.imports[name]
		if !ok || hidden[name] {
			return
		}
		expr := b.expr()
		switch {
		case n.Type() == "shorthand_property_identifier":
			expr = name + ": " + expr
		case b.name != "" && isCallee(n):
			expr = "(0, " + expr + ")"
		}
		m.edits = append(m.edits, edit{start: int(n.StartByte()), end: int(n.EndByte()), text: expr})
		return
	}

	for _, name := range m.scopeNames(n) {
		if _, ok := m.imports[name]; !ok || hidden[name] {
			continue
		}
		inner := make(map[string]bool, len(hidden)+1)
		maps.Copy(inner, hidden)
		inner[name] = true
		hidden = inner
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		m.references(n.NamedChild(i), hidden)
	}
}

func isFunction(typ string) bool {
	switch typ {
	case "function_declaration", "generator_function_declaration", "function_expression",
		"function", "generator_function", "arrow_function", "method_definition":
		return true
	}
	return false
}

// scopeNames returns the names n declares for its own subtree when n opens a
// scope. Top-level declarations are not included: redeclaring an import there
// is a syntax error.
func (m *module) scopeNames(n *sitter.Node) []string {
	var names []string
	switch typ := n.Type(); {
	case isFunction(typ):
		if name := n.ChildByFieldName("name"); name != nil && name.Type() == "identifier" {
			names = append(names, m.text(name))
		}
		if p := n.ChildByFieldName("parameter"); p != nil {
			names = m.patternNames(p, names)
		}
		if params := n.ChildByFieldName("parameters"); params != nil {
			for i := 0; i < int(params.NamedChildCount()); i++ {
				names = m.patternNames(params.NamedChild(i), names)
			}
		}
		if body := n.ChildByFieldName("body"); body != nil {
			names = m.varNames(body, names)
		}
	case typ == "class":
		if name := n.ChildByFieldName("name"); name != nil {
			names = append(names, m.text(name))
		}
	case typ == "statement_block":
		names = m.lexicalNames(n, names)
	case typ == "switch_body":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			names = m.lexicalNames(n.NamedChild(i), names)
		}
	case typ == "for_statement":
		if init := n.ChildByFieldName("initializer"); init != nil && init.Type() == "lexical_declaration" {
			names = append(names, m.declaredNames(init)...)
		}
	case typ == "for_in_statement":
		if n.ChildByFieldName("kind") != nil {
			names = m.patternNames(n.ChildByFieldName("left"), names)
		}
	case typ == "catch_clause":
		names = m.patternNames(n.ChildByFieldName("parameter"), names)
	}
	return names
}

// lexicalNames collects the block scoped declarations directly inside n.
func (m *module) lexicalNames(n *sitter.Node, names []string) []string {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "lexical_declaration", "class_declaration", "function_declaration", "generator_function_declaration":
			names = append(names, m.declaredNames(c)...)
		}
	}
	return names
}

// varNames collects the var declarations hoisted to the function whose body
// is n.
func (m *module) varNames(n *sitter.Node, names []string) []string {
	switch n.Type() {
	case "variable_declaration":
		return append(names, m.declaredNames(n)...)
	case "for_in_statement":
		if kind := n.ChildByFieldName("kind"); kind != nil && m.text(kind) == "var" {
			names = m.patternNames(n.ChildByFieldName("left"), names)
		}
	case "class", "class_declaration":
		return names
	default:
		if isFunction(n.Type()) {
			return names
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		names = m.varNames(n.NamedChild(i), names)
	}
	return names
}

func isCallee(n *sitter.Node) bool {
	p := n.Parent()
	if p == nil || p.Type() != "call_expression" {
		return false
	}
	f := p.ChildByFieldName("function")
	return f != nil && f.StartByte() == n.StartByte() && f.EndByte() == n.EndByte()
}

// remove drops a whole statement along with its line break.
func (m *module) remove(n *sitter.Node) {
	end := int(n.EndByte())
	if end < len(m.src) && m.src[end] == '\n' {
		end++
	}
	m.edits = append(m.edits, edit{start: int(n.StartByte()), end: end})
}

func (m *module) rewrite() ([]byte, error) {
	slices.SortStableFunc(m.edits, func(a, b edit) int {
		if a.start != b.start {
			return a.start - b.start
		}
		return a.end - b.end
	})
	var b bytes.Buffer
	pos := 0
	for _, e := range m.edits {
		if e.start < pos {
			return nil, &builderr.TranspileError{Path: m.path, Msg: fmt.Sprintf("overlapping rewrite at byte %d", e.start)}
		}
		b.Write(m.src[pos:e.start])
		b.WriteString(e.text)
		pos = e.end
	}
	b.Write(m.src[pos:])
	return bytes.TrimSpace(b.Bytes()), nil
}

func (m *module) hasExports() bool {
	return len(m.exports) > 0 || len(m.stars) > 0
}

func (m *module) getters(b *strings.Builder) {
	if !m.hasExports() {
		return
	}
	fmt.Fprintf(b, "Object.defineProperty(%s, \"__esModule\", { value: true });\n", m.exportsVar)
	for _, e := range m.exports {
		fmt.Fprintf(b, "Object.defineProperty(%s, %s, { enumerable: true, get: function () { return %s; } });\n",
			m.exportsVar, strconv.Quote(e.name), e.expr)
	}
}

func (m *module) reexports(b *strings.Builder) {
	for _, d := range m.stars {
		fmt.Fprintf(b, "Object.keys(%s).forEach(function (key) {\n", d.local)
		b.WriteString("  if (key === \"default\" || key === \"__esModule\") return;\n")
		fmt.Fprintf(b, "  if (Object.prototype.hasOwnProperty.call(%s, key)) return;\n", m.exportsVar)
		fmt.Fprintf(b, "  Object.defineProperty(%s, key, { enumerable: true, get: function () { return %s[key]; } });\n", m.exportsVar, d.local)
		b.WriteString("});\n")
	}
}

func (m *module) wrapAMD(id string, body []byte) []byte {
	var deps, params []string
	if m.hasExports() {
		deps = append(deps, `"exports"`)
		params = append(params, m.exportsVar)
	}
	for _, d := range m.deps {
		deps = append(deps, strconv.Quote(d.id))
		params = append(params, d.local)
	}

	var pre strings.Builder
	m.getters(&pre)
	m.reexports(&pre)

	var b strings.Builder
	fmt.Fprintf(&b, "define(%s, [%s], function (%s) {\n", strconv.Quote(id), strings.Join(deps, ", "), strings.Join(params, ", "))
	b.WriteString("\"use strict\";\n\n")
	writeSections(&b, pre.String(), string(body))
	b.WriteString("});\n")
	return []byte(b.String())
}

func (m *module) wrapCJS(body []byte) []byte {
	var pre strings.Builder
	m.getters(&pre)
	for _, d := range m.deps {
		if d.bound {
			fmt.Fprintf(&pre, "var %s = require(%s);\n", d.local, strconv.Quote(d.id))
		} else {
			fmt.Fprintf(&pre, "require(%s);\n", strconv.Quote(d.id))
		}
	}
	m.reexports(&pre)

	var b strings.Builder
	b.WriteString("\"use strict\";\n\n")
	writeSections(&b, pre.String(), string(body))
	return []byte(b.String())
}

func writeSections(b *strings.Builder, sections ...string) {
	first := true
	for _, s := range sections {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !first {
			b.WriteString("\n")
		}
		first = false
		b.WriteString(s)
		b.WriteString("\n")
	}
}

func (m *module) unique(name string) string {
	candidate := name
	for i := 2; m.used[candidate]; i++ {
		candidate = name + strconv.Itoa(i)
	}
	m.used[candidate] = true
	return candidate
}

func (m *module) stringValue(n *sitter.Node) (string, error) {
	if n == nil || n.Type() != "string" {
		return "", &builderr.TranspileError{Path: m.path, Msg: "expected module specifier"}
	}
	s := m.text(n)
	if len(s) < 2 {
		return "", &builderr.TranspileError{Path: m.path, Msg: fmt.Sprintf("invalid string %s", s)}
	}
	inner := s[1 : len(s)-1]
	if s[0] == '\'' {
		inner = strings.ReplaceAll(strings.ReplaceAll(inner, `\'`, `'`), `"`, `\"`)
	}
	v, err := strconv.Unquote(`"` + inner + `"`)
	if err != nil {
		return "", &builderr.TranspileError{Path: m.path, Msg: fmt.Sprintf("invalid string %s", s), Err: err}
	}
	return v, nil
}

func (m *module) nameValue(n *sitter.Node) (string, error) {
	if n == nil {
		return "", &builderr.TranspileError{Path: m.path, Msg: "missing name"}
	}
	if n.Type() == "string" {
		return m.stringValue(n)
	}
	return m.text(n), nil
}

func identifiers(n *sitter.Node, src []byte, out map[string]bool) {
	if n.ChildCount() == 0 {
		if strings.Contains(n.Type(), "identifier") {
			out[n.Content(src)] = true
		}
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		identifiers(n.NamedChild(i), src, out)
	}
}

func namedChild(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == typ {
			return c
		}
	}
	return nil
}

func hasToken(n *sitter.Node, tok string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); !c.IsNamed() && c.Type() == tok {
			return true
		}
	}
	return false
}

var identRE = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

func member(obj, name string) string {
	if identRE.MatchString(name) {
		return obj + "." + name
	}
	return obj + "[" + strconv.Quote(name) + "]"
}

// depName derives a local variable name from a specifier:
// "route-recognizer" becomes "_routeRecognizer".
func depName(spec string) string {
	base := strings.TrimSuffix(path.Base(spec), ".js")
	parts := strings.FieldsFunc(base, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '$'
	})
	var b strings.Builder
	b.WriteByte('_')
	for i, p := range parts {
		if i > 0 {
			r := []rune(p)
			r[0] = unicode.ToUpper(r[0])
			p = string(r)
		}
		b.WriteString(p)
	}
	return b.String()
}
