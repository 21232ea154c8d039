package callable

import sitter "github.com/alexaandru/go-tree-sitter-bare"

// decisionPoints are the node types that add one path each: conditionals,
// loops, switch labels (case and default), catch clauses and ternaries.
var decisionPoints = map[string]bool{
	"if_statement":           true,
	"for_statement":          true,
	"enhanced_for_statement": true,
	"while_statement":        true,
	"do_statement":           true,
	"switch_label":           true,
	"catch_clause":           true,
	"ternary_expression":     true,
}

// cyclomatic returns 1 plus the number of decision points anywhere below n,
// nested lambdas and local classes included.
func cyclomatic(n sitter.Node) int {
	complexity := 1

	walk(n, func(child sitter.Node) {
		if decisionPoints[child.Type()] {
			complexity++
		}
	})

	return complexity
}
