package hast

import "fmt"

// Action tells Visit how to proceed after a node was visited.
type Action uint8

const (
	// Continue descends into the node's children, then moves to the next
	// sibling.
	Continue Action = iota
	// Skip moves to the next sibling without descending.
	Skip
	// Revisit visits the same index of the parent again. Return it after
	// replacing or removing the visited node.
	Revisit
)

// Visitor is called for every node in depth-first pre-order. index is the
// node's position in parent's children; the root is visited with index -1
// and a nil parent.
type Visitor func(n Node, index int, parent Parent) Action

// Visit walks the tree under root. The visitor may splice the children of
// parent at index, provided it returns Revisit.
func Visit(root Node, visit Visitor) {
	switch visit(root, -1, nil) {
	case Continue:
		walk(root, visit)
	case Skip, Revisit:
	default:
		panic("hast: unknown visit action")
	}
}

func walk(n Node, visit Visitor) {
	p, ok := n.(Parent)
	if !ok {
		return
	}
	kids := p.ChildList()
	for i := 0; i < len(*kids); {
		child := (*kids)[i]
		switch action := visit(child, i, p); action {
		case Continue:
			walk(child, visit)
			i++
		case Skip:
			i++
		case Revisit:
		default:
			panic(fmt.Sprintf("hast: unknown visit action %d", action))
		}
	}
}

// Replace substitutes the child of p at index with nodes. With no nodes the
// child is removed.
func Replace(p Parent, index int, nodes ...Node) {
	kids := p.ChildList()
	tail := append([]Node(nil), (*kids)[index+1:]...)
	*kids = append(append((*kids)[:index], nodes...), tail...)
}

// Remove deletes the child of p at index.
func Remove(p Parent, index int) {
	Replace(p, index)
}
