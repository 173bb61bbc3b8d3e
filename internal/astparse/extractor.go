package astparse

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// extractFunctions walks the AST collecting function and method definitions.
// The C and C++ grammars share the node kinds that matter here.
func extractFunctions(root *sitter.Node, code []byte) []Function {
	var fns []Function

	var walk func(*sitter.Node)
	walk = func(node *sitter.Node) {
		if node == nil {
			return
		}

		if node.Kind() == "function_definition" {
			if fn, ok := functionInfo(node, code); ok {
				fns = append(fns, fn)
			}
		}

		for i := uint(0); i < node.ChildCount(); i++ {
			walk(node.Child(i))
		}
	}

	walk(root)
	return fns
}

// functionInfo builds a Function from a function_definition node. Definitions
// whose declarator cannot be resolved to a name (K&R oddities, macros
// expanding to definitions) are skipped.
func functionInfo(node *sitter.Node, code []byte) (Function, bool) {
	declarator := node.ChildByFieldName("declarator")
	funcDecl := findFunctionDeclarator(declarator)
	if funcDecl == nil {
		return Function{}, false
	}

	nameNode := funcDecl.ChildByFieldName("declarator")
	name := nodeText(nameNode, code)
	if name == "" {
		return Function{}, false
	}

	// Methods defined inside a class body get qualified with the class name,
	// matching how out-of-line definitions already read (Class::Method).
	if !strings.Contains(name, "::") {
		if class := parentClassName(node, code); class != "" {
			name = class + "::" + name
		}
	}

	returnType := nodeText(node.ChildByFieldName("type"), code)

	var params []string
	if paramList := funcDecl.ChildByFieldName("parameters"); paramList != nil {
		for i := uint(0); i < paramList.NamedChildCount(); i++ {
			child := paramList.NamedChild(i)
			if child == nil {
				continue
			}
			switch child.Kind() {
			case "parameter_declaration", "optional_parameter_declaration", "variadic_parameter":
				params = append(params, strings.TrimSpace(nodeText(child, code)))
			}
		}
	}

	signature := strings.TrimSpace(returnType + " " + nodeText(funcDecl, code))

	return Function{
		Name:       name,
		StartLine:  int(node.StartPosition().Row) + 1,
		EndLine:    int(node.EndPosition().Row) + 1,
		ReturnType: returnType,
		Parameters: params,
		Signature:  signature,
	}, true
}

// findFunctionDeclarator unwraps pointer/reference declarators until it
// reaches the function_declarator, e.g. for "char* Foo::Bar(...)".
func findFunctionDeclarator(node *sitter.Node) *sitter.Node {
	for node != nil {
		switch node.Kind() {
		case "function_declarator":
			return node
		case "pointer_declarator", "reference_declarator":
			node = node.ChildByFieldName("declarator")
			if node == nil {
				return nil
			}
		default:
			return nil
		}
	}
	return nil
}

// parentClassName walks up to the enclosing class/struct specifier, if any.
func parentClassName(node *sitter.Node, code []byte) string {
	current := node.Parent()
	for current != nil {
		switch current.Kind() {
		case "class_specifier", "struct_specifier":
			if nameNode := current.ChildByFieldName("name"); nameNode != nil {
				return nodeText(nameNode, code)
			}
		}
		current = current.Parent()
	}
	return ""
}

// nodeText extracts a node's source text using byte offsets.
func nodeText(node *sitter.Node, code []byte) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if int(end) > len(code) {
		end = uint(len(code))
	}
	return string(code[start:end])
}
