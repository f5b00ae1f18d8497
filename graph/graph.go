// Package graph provides a small sequential execution graph used to drive
// the triage state machine: named nodes, conditional branches, a visit
// guard against runaway loops, and cancellation checks between nodes.
package graph

import (
	"context"
	"fmt"
)

// NodeType classifies graph nodes.
type NodeType string

const (
	NodeTypeStart     NodeType = "start"
	NodeTypeEnd       NodeType = "end"
	NodeTypeStage     NodeType = "stage"
	NodeTypeCondition NodeType = "condition"
)

// State is the execution state passed between nodes.
type State map[string]any

// NodeFunc is the function executed by a stage node.
type NodeFunc func(context.Context, State) (State, error)

// ConditionFunc evaluates a condition and returns a branch label.
type ConditionFunc func(context.Context, State) (string, error)

// Node is one step in the execution graph.
type Node struct {
	Name      string
	Type      NodeType
	Execute   NodeFunc
	Condition ConditionFunc     // condition nodes only
	Next      string            // stage nodes: single successor
	Branches  map[string]string // condition nodes: label -> successor
}

// Graph is a sequential flow with conditional branches.
type Graph struct {
	nodes     map[string]*Node
	start     string
	maxVisits int
}

// Builder assembles a graph.
type Builder struct {
	g *Graph
}

// NewBuilder creates an empty graph builder.
func NewBuilder() *Builder {
	return &Builder{g: &Graph{
		nodes:     make(map[string]*Node),
		maxVisits: 10,
	}}
}

// AddStage registers a stage node.
func (b *Builder) AddStage(name string, fn NodeFunc) *Builder {
	b.add(&Node{Name: name, Type: NodeTypeStage, Execute: fn})
	return b
}

// AddCondition registers a branching node.
func (b *Builder) AddCondition(name string, cond ConditionFunc, branches map[string]string) *Builder {
	b.add(&Node{Name: name, Type: NodeTypeCondition, Condition: cond, Branches: branches})
	return b
}

// AddEnd registers a terminal node.
func (b *Builder) AddEnd(name string, fn NodeFunc) *Builder {
	b.add(&Node{Name: name, Type: NodeTypeEnd, Execute: fn})
	return b
}

// Edge links a stage node to its successor.
func (b *Builder) Edge(from, to string) *Builder {
	node, ok := b.g.nodes[from]
	if !ok {
		panic(fmt.Sprintf("graph: node %s not found", from))
	}
	if node.Type == NodeTypeCondition {
		panic(fmt.Sprintf("graph: condition node %s uses branches, not edges", from))
	}
	node.Next = to
	return b
}

// Start marks the entry node.
func (b *Builder) Start(name string) *Builder {
	if _, ok := b.g.nodes[name]; !ok {
		panic(fmt.Sprintf("graph: node %s not found", name))
	}
	b.g.start = name
	return b
}

// MaxVisits overrides the per-node visit guard.
func (b *Builder) MaxVisits(n int) *Builder {
	if n > 0 {
		b.g.maxVisits = n
	}
	return b
}

// Build finalises the graph.
func (b *Builder) Build() *Graph {
	if b.g.start == "" {
		panic("graph: start node not set")
	}
	return b.g
}

func (b *Builder) add(node *Node) {
	if node.Name == "" {
		panic("graph: node name cannot be empty")
	}
	if _, exists := b.g.nodes[node.Name]; exists {
		panic(fmt.Sprintf("graph: node %s already exists", node.Name))
	}
	switch node.Type {
	case NodeTypeCondition:
		if node.Condition == nil {
			panic(fmt.Sprintf("graph: condition node %s must have a Condition function", node.Name))
		}
	default:
		if node.Execute == nil {
			panic(fmt.Sprintf("graph: node %s must have an Execute function", node.Name))
		}
	}
	b.g.nodes[node.Name] = node
}

// Execute walks the graph from the start node, or from the override node
// when from is non-empty. Between nodes the context is checked so a canceled
// ticket stops before the next stage call; already-applied state mutations
// are preserved.
func (g *Graph) Execute(ctx context.Context, initial State, from string) (State, error) {
	state := initial
	if state == nil {
		state = make(State)
	}

	current := g.start
	if from != "" {
		current = from
	}

	visits := make(map[string]int)
	for {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		node, ok := g.nodes[current]
		if !ok {
			return state, fmt.Errorf("graph: node %s not found", current)
		}

		visits[current]++
		if visits[current] > g.maxVisits {
			return state, fmt.Errorf("graph: visit limit exceeded at node %s", current)
		}

		switch node.Type {
		case NodeTypeCondition:
			label, err := node.Condition(ctx, state)
			if err != nil {
				return state, fmt.Errorf("graph: condition %s: %w", node.Name, err)
			}
			next, ok := node.Branches[label]
			if !ok {
				return state, fmt.Errorf("graph: condition %s has no branch %q", node.Name, label)
			}
			current = next

		case NodeTypeEnd:
			return node.Execute(ctx, state)

		default:
			var err error
			state, err = node.Execute(ctx, state)
			if err != nil {
				return state, fmt.Errorf("graph: node %s: %w", node.Name, err)
			}
			if node.Next == "" {
				return state, fmt.Errorf("graph: node %s has no successor", node.Name)
			}
			current = node.Next
		}
	}
}
