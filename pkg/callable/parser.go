package callable

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/alexaandru/go-sitter-forest/java"
	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

var (
	errPoolType    = errors.New("unexpected parser type in pool")
	errNoRootNode  = errors.New("no root node")
	errSyntaxError = errors.New("source contains syntax errors")
	errTooLarge    = errors.New("source exceeds size limit")
)

const (
	nodeMethod            = "method_declaration"
	nodeConstructor       = "constructor_declaration"
	nodeCompactCtor       = "compact_constructor_declaration"
	nodeFormalParameter   = "formal_parameter"
	nodeSpreadParameter   = "spread_parameter"
	fieldName             = "name"
	fieldParameters       = "parameters"
	fieldType             = "type"
	fieldDimensions       = "dimensions"
	signatureParamJoin    = ", "
	varargsArraySuffix    = "[]"
	spreadDeclaratorType  = "variable_declarator"
	spreadModifiersType   = "modifiers"
	spreadAnnotationType  = "annotation"
	spreadMarkerAnnotType = "marker_annotation"
)

var annotationPattern = regexp.MustCompile(`@[\w.]+(\([^)]*\))?`)

// Parser parses Java sources. It is safe for concurrent use.
type Parser struct {
	maxBytes int
	pool     sync.Pool
}

// Option configures a Parser.
type Option func(*Parser)

// WithMaxBytes rejects sources larger than n bytes. Zero disables the limit.
func WithMaxBytes(n int) Option {
	return func(p *Parser) {
		p.maxBytes = n
	}
}

// NewParser creates a Java parser.
func NewParser(opts ...Option) *Parser {
	lang := sitter.NewLanguage(java.GetLanguage())

	p := &Parser{}
	p.pool = sync.Pool{
		New: func() any {
			tsParser := sitter.NewParser()
			tsParser.SetLanguage(lang)

			return tsParser
		},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Parse extracts every method and constructor declared in content, including
// those of nested and anonymous classes, in source order.
func (p *Parser) Parse(ctx context.Context, content []byte) ParseResult {
	if p.maxBytes > 0 && len(content) > p.maxBytes {
		return Failed(ReasonTooLarge, fmt.Errorf("%w: %d bytes", errTooLarge, len(content)))
	}

	tsParser, ok := p.pool.Get().(*sitter.Parser)
	if !ok {
		return Failed(ReasonParser, errPoolType)
	}
	defer p.pool.Put(tsParser)

	tree, err := tsParser.ParseString(ctx, nil, content)
	if err != nil {
		return Failed(ReasonParser, fmt.Errorf("parse java: %w", err))
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() {
		return Failed(ReasonParser, errNoRootNode)
	}

	// ERROR nodes and tokens inserted as MISSING both mark the file as broken.
	if root.HasError() {
		return Failed(ReasonSyntax, errSyntaxError)
	}

	var decls []Declaration

	walk(root, func(n sitter.Node) {
		switch n.Type() {
		case nodeMethod:
			decls = append(decls, declaration(n, content, Method))
		case nodeConstructor, nodeCompactCtor:
			decls = append(decls, declaration(n, content, Constructor))
		}
	})

	return ParseResult{Declarations: decls}
}

// walk visits n and its named descendants in pre-order.
func walk(n sitter.Node, visit func(sitter.Node)) {
	visit(n)

	for i := range n.NamedChildCount() {
		walk(n.NamedChild(i), visit)
	}
}

func declaration(n sitter.Node, src []byte, kind Kind) Declaration {
	name := text(n.ChildByFieldName(fieldName), src)

	var types []string

	params := n.ChildByFieldName(fieldParameters)
	if !params.IsNull() {
		for i := range params.NamedChildCount() {
			param := params.NamedChild(i)

			switch param.Type() {
			case nodeFormalParameter:
				types = append(types, normalizeType(text(param.ChildByFieldName(fieldType), src))+
					compact(text(param.ChildByFieldName(fieldDimensions), src)))
			case nodeSpreadParameter:
				types = append(types, normalizeType(text(spreadType(param), src))+varargsArraySuffix)
			}
		}
	}

	return Declaration{
		Name:       name,
		Signature:  name + "(" + strings.Join(types, signatureParamJoin) + ")",
		Kind:       kind,
		StartLine:  int(n.StartPoint().Row) + 1,
		EndLine:    int(n.EndPoint().Row) + 1,
		Parameters: len(types),
		Complexity: cyclomatic(n),
	}
}

func spreadType(param sitter.Node) sitter.Node {
	for i := range param.NamedChildCount() {
		child := param.NamedChild(i)

		switch child.Type() {
		case spreadModifiersType, spreadAnnotationType, spreadMarkerAnnotType, spreadDeclaratorType:
			continue
		default:
			return child
		}
	}

	return sitter.Node{}
}

func text(n sitter.Node, src []byte) string {
	if n.IsNull() {
		return ""
	}

	return string(src[n.StartByte():n.EndByte()])
}

// normalizeType renders a parameter type the way signatures spell it: type
// arguments and annotations removed, no whitespace.
func normalizeType(t string) string {
	t = annotationPattern.ReplaceAllString(t, "")

	var b strings.Builder

	depth := 0

	for _, r := range t {
		switch {
		case r == '<':
			depth++
		case r == '>':
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}

	return compact(b.String())
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}
