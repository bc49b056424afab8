package gbdt

import (
	"math"
	"sort"
)

// Node is one node of a regression tree. Leaves have Left == -1.
type Node struct {
	Feature     int
	Categorical bool
	Threshold   float64 // numeric split: NaN or value <= Threshold goes left
	Categories  []int   // categorical split: sorted codes going left, -1 = missing/unseen
	Left        int
	Right       int
	Gain        float64
	Value       float64 // leaf output, already scaled by the learning rate
	Count       int
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool {
	return n.Left == -1
}

// Tree represents a single decision tree in the ensemble
type Tree struct {
	Nodes []Node
}

// predict walks the tree for one raw feature row
func (t *Tree) predict(row []float64, mappers []*binMapper) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return n.Value
		}
		if n.goesLeft(row[n.Feature], mappers[n.Feature]) {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (n *Node) goesLeft(v float64, m *binMapper) bool {
	if n.Categorical {
		key := m.categoryKey(v)
		pos := sort.SearchInts(n.Categories, key)
		return pos < len(n.Categories) && n.Categories[pos] == key
	}
	return math.IsNaN(v) || v <= n.Threshold
}

// NumLeaves counts the leaf nodes
func (t *Tree) NumLeaves() int {
	count := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			count++
		}
	}
	return count
}

// Depth returns the length of the longest root-to-leaf path
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}
