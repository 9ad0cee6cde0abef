package codegen

import (
	"go/ast"
	"strings"
)

const (
	// DirectivePrefix starts every itemx directive comment.
	DirectivePrefix = "itemx:"

	// ItemDirective marks a struct for augmentation.
	ItemDirective = "item"

	// DeriveDirective is written above augmented declarations to list the
	// derived capabilities.
	DeriveDirective = "derive"
)

// Capabilities derived for every augmented struct, in emission order.
var Capabilities = []string{"serialize", "deserialize", "clone", "debug"}

// Directive is a parsed //itemx:<name> [args] comment.
type Directive struct {
	Name string
	Args string
	Text string
}

// parseDirectives extracts itemx directives from a comment group
func parseDirectives(group *ast.CommentGroup) []Directive {
	if group == nil {
		return nil
	}

	var directives []Directive
	for _, comment := range group.List {
		if d, ok := parseDirective(comment.Text); ok {
			directives = append(directives, d)
		}
	}
	return directives
}

// parseDirective parses a single comment. Both the compact //itemx:item form
// and the spaced // itemx:item form are accepted, as are block comments.
func parseDirective(text string) (Directive, bool) {
	body := text
	switch {
	case strings.HasPrefix(body, "//"):
		body = strings.TrimPrefix(body, "//")
	case strings.HasPrefix(body, "/*"):
		body = strings.TrimSuffix(strings.TrimPrefix(body, "/*"), "*/")
	default:
		return Directive{}, false
	}

	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, DirectivePrefix) {
		return Directive{}, false
	}
	body = strings.TrimPrefix(body, DirectivePrefix)

	name, args, _ := strings.Cut(body, " ")
	name = strings.TrimSpace(name)
	if name == "" {
		return Directive{}, false
	}

	return Directive{
		Name: name,
		Args: strings.TrimSpace(args),
		Text: text,
	}, true
}

// hasItemDirective reports whether any directive marks the declaration as an item
func hasItemDirective(directives []Directive) bool {
	for _, d := range directives {
		if d.Name == ItemDirective {
			return true
		}
	}
	return false
}

// deriveDirective renders the capability line placed above augmented declarations
func deriveDirective() string {
	return "//" + DirectivePrefix + DeriveDirective + " " + strings.Join(Capabilities, ",")
}
