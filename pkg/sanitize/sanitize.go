// Package sanitize filters and rewrites a document tree according to an
// element policy and URL safety rules before any embedded script runs.
package sanitize

import (
	"fmt"
	"slices"

	"github.com/recera/mdxlite/pkg/hast"
)

// Options configures Sanitize. The zero value keeps every element, turns raw
// markup into text and applies DefaultURLTransform.
type Options struct {
	// AllowedElements lists the only tags to keep. A nil slice means the
	// option is not set; an empty non-nil slice removes every element.
	AllowedElements []string

	// DisallowedElements lists tags to remove. It cannot be combined with
	// AllowedElements.
	DisallowedElements []string

	// AllowElement is consulted for elements the lists keep. Returning false
	// removes the element.
	AllowElement func(el *hast.Element, index int, parent hast.Parent) bool

	// UnwrapDisallowed replaces a removed element with its children instead
	// of dropping the whole subtree.
	UnwrapDisallowed bool

	// SkipHTML drops raw markup instead of turning it into text.
	SkipHTML bool

	// URLTransform rewrites URL attributes. Defaults to DefaultURLTransform.
	URLTransform URLTransform
}

// ConfigurationError reports options that cannot be used together or input
// that cannot be compiled. It is returned before the tree is touched.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Message
}

// Validate checks the options for conflicts.
func (o *Options) Validate() error {
	if o.AllowedElements != nil && o.DisallowedElements != nil {
		return &ConfigurationError{
			Message: "allowed and disallowed elements cannot be combined, expected one or the other",
		}
	}
	return nil
}

// Sanitize applies the options to root in place and returns it.
//
// Raw nodes become text, or are removed with SkipHTML. URL attributes are
// passed through the transform. Elements rejected by the policy are removed,
// or unwrapped with UnwrapDisallowed. The traversal is a single depth-first
// pass, and nodes spliced into a parent are visited in turn.
func Sanitize(root *hast.Root, opts Options) (*hast.Root, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	transform := opts.URLTransform
	if transform == nil {
		transform = DefaultURLTransform
	}

	hast.Visit(root, func(n hast.Node, index int, parent hast.Parent) hast.Action {
		switch n := n.(type) {
		case *hast.Root, *hast.Text, *hast.Expression, *hast.Program, *hast.Value:
			return hast.Continue
		case *hast.Raw:
			if parent == nil {
				return hast.Continue
			}
			if opts.SkipHTML {
				hast.Remove(parent, index)
			} else {
				hast.Replace(parent, index, hast.NewText(n.Value))
			}
			return hast.Revisit
		case *hast.Element:
			rewriteURLs(n, transform)
			if parent == nil || !opts.remove(n, index, parent) {
				return hast.Continue
			}
			if opts.UnwrapDisallowed {
				hast.Replace(parent, index, n.Children...)
			} else {
				hast.Remove(parent, index)
			}
			return hast.Revisit
		default:
			panic(fmt.Sprintf("sanitize: unknown node type %T", n))
		}
	})
	return root, nil
}

func (o *Options) remove(el *hast.Element, index int, parent hast.Parent) bool {
	var remove bool
	switch {
	case o.AllowedElements != nil:
		remove = !slices.Contains(o.AllowedElements, el.Tag)
	case o.DisallowedElements != nil:
		remove = slices.Contains(o.DisallowedElements, el.Tag)
	}
	if !remove && o.AllowElement != nil {
		remove = !o.AllowElement(el, index, parent)
	}
	return remove
}

func rewriteURLs(el *hast.Element, transform URLTransform) {
	for i := range el.Attrs {
		attr := &el.Attrs[i]
		if attr.Removed || !IsURLAttribute(el.Tag, attr.Name) {
			continue
		}
		value, ok := transform(attr.Value, attr.Name, el)
		if !ok {
			attr.Removed = true
			attr.Value = ""
			continue
		}
		attr.Value = value
	}
}
