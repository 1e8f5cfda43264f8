package infidex

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// fstNode and fstArc are the flat (start,count) arrays spec §4.2 calls for:
// arcs per node live in a contiguous region of the arcs slice, sorted by
// label, so lookups binary-search within [arcStart, arcStart+arcCount).
type fstNode struct {
	arcStart int32
	arcCount int32
	output   int32
	isFinal  bool
}

type fstArc struct {
	label  uint16
	target int32
}

// FstIndex is an acyclic finite-state transducer mapping term text
// to an integer output equal to the term's insertion index in
// TermCollection (spec §4.2, §3). Arcs are deduplicated by shared prefix
// only (a trie, not a minimized DAWG): shared suffixes are not merged
// — see DESIGN.md — which preserves every correctness guarantee
// in spec §4.2/§8 at the cost of extra nodes for shared suffixes.
type FstIndex struct {
	nodes []fstNode
	arcs  []fstArc
	root  int32
}

type trieBuildNode struct {
	children map[uint16]*trieBuildNode
	isFinal  bool
	output   int32
}

func newTrieBuildNode() *trieBuildNode {
	return &trieBuildNode{children: make(map[uint16]*trieBuildNode)}
}

// BuildFst builds a trie-shaped acyclic FST over sorted terms, rejecting
// unsorted input per spec §4.2's failure contract. The result is not
// minimized: terms that share a suffix keep separate suffix nodes.
func BuildFst(sortedTerms []string, outputs []int32) (*FstIndex, error) {
	if len(sortedTerms) != len(outputs) {
		return nil, fmt.Errorf("%w: terms/outputs length mismatch", ErrInvalidArgument)
	}
	for i := 1; i < len(sortedTerms); i++ {
		if sortedTerms[i] < sortedTerms[i-1] {
			return nil, fmt.Errorf("%w: fst builder input not sorted at index %d", ErrInvalidArgument, i)
		}
	}

	root := newTrieBuildNode()
	for i, term := range sortedTerms {
		cur := root
		for _, r := range term {
			label := uint16(r)
			child, ok := cur.children[label]
			if !ok {
				child = newTrieBuildNode()
				cur.children[label] = child
			}
			cur = child
		}
		cur.isFinal = true
		cur.output = outputs[i]
	}

	return flattenTrie(root), nil
}

func flattenTrie(root *trieBuildNode) *FstIndex {
	var nodes []fstNode
	var arcs []fstArc
	index := map[*trieBuildNode]int32{root: 0}
	nodes = append(nodes, fstNode{})
	queue := []*trieBuildNode{root}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		curIdx := index[cur]

		keys := make([]uint16, 0, len(cur.children))
		for k := range cur.children {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

		arcStart := int32(len(arcs))
		for _, k := range keys {
			child := cur.children[k]
			childIdx := int32(len(nodes))
			index[child] = childIdx
			nodes = append(nodes, fstNode{})
			arcs = append(arcs, fstArc{label: k, target: childIdx})
			queue = append(queue, child)
		}

		nodes[curIdx] = fstNode{
			arcStart: arcStart,
			arcCount: int32(len(keys)),
			output:   cur.output,
			isFinal:  cur.isFinal,
		}
	}

	return &FstIndex{nodes: nodes, arcs: arcs, root: 0}
}

func (f *FstIndex) findArc(node fstNode, label uint16) (int32, bool) {
	lo, hi := node.arcStart, node.arcStart+node.arcCount
	for lo < hi {
		mid := (lo + hi) / 2
		a := f.arcs[mid]
		switch {
		case a.label == label:
			return mid, true
		case a.label < label:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return 0, false
}

func (f *FstIndex) walk(s string) (int32, bool) {
	cur := f.root
	for _, r := range s {
		idx, ok := f.findArc(f.nodes[cur], uint16(r))
		if !ok {
			return 0, false
		}
		cur = f.arcs[idx].target
	}
	return cur, true
}

// GetExact returns the output for an exact key match.
func (f *FstIndex) GetExact(key string) (int32, bool) {
	nodeIdx, ok := f.walk(key)
	if !ok {
		return 0, false
	}
	n := f.nodes[nodeIdx]
	if !n.isFinal {
		return 0, false
	}
	return n.output, true
}

// GetByPrefix appends every output whose key starts with prefix.
func (f *FstIndex) GetByPrefix(prefix string, out *[]int32) {
	nodeIdx, ok := f.walk(prefix)
	if !ok {
		return
	}
	f.collectSubtree(nodeIdx, out)
}

func (f *FstIndex) collectSubtree(nodeIdx int32, out *[]int32) {
	n := f.nodes[nodeIdx]
	if n.isFinal {
		*out = append(*out, n.output)
	}
	for a := n.arcStart; a < n.arcStart+n.arcCount; a++ {
		f.collectSubtree(f.arcs[a].target, out)
	}
}

// WithinEditDistance1 returns every output whose key is at Levenshtein
// distance <= 1 from q: a DFS over the FST carrying a single-edit budget
// covering substitution, insertion, and deletion, pruned to arcs that
// actually exist at each reached node (spec §4.2).
func (f *FstIndex) WithinEditDistance1(q string) []int32 {
	qr := []rune(q)
	var out []int32
	seen := make(map[int32]bool)

	add := func(output int32) {
		if !seen[output] {
			seen[output] = true
			out = append(out, output)
		}
	}

	var rec func(nodeIdx int32, qi int, used bool)
	rec = func(nodeIdx int32, qi int, used bool) {
		n := f.nodes[nodeIdx]

		if qi == len(qr) {
			if n.isFinal {
				add(n.output)
			}
			if !used {
				// one trailing dictionary character beyond q: a deletion
				// from the term's perspective (insertion relative to q).
				for a := n.arcStart; a < n.arcStart+n.arcCount; a++ {
					child := f.nodes[f.arcs[a].target]
					if child.isFinal {
						add(child.output)
					}
				}
			}
			return
		}

		c := uint16(qr[qi])
		if idx, ok := f.findArc(n, c); ok {
			rec(f.arcs[idx].target, qi+1, used)
		}

		if !used {
			for a := n.arcStart; a < n.arcStart+n.arcCount; a++ {
				arc := f.arcs[a]
				if arc.label != c {
					rec(arc.target, qi+1, true) // substitution
				}
				rec(arc.target, qi, true) // insertion into q
			}
			rec(nodeIdx, qi+1, true) // deletion from q
		}
	}

	rec(f.root, 0, false)
	return out
}

// reverseString reverses s rune-wise, used to build/query the suffix FST.
func reverseString(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

// Serialize writes (nodeCount, nodes[], arcCount, arcs[], rootIndex) per
// spec §6's FST section shape.
func (f *FstIndex) Serialize(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, int32(len(f.nodes))); err != nil {
		return &IoError{Op: "write fst node count", Err: err}
	}
	for _, n := range f.nodes {
		if err := binary.Write(w, binary.LittleEndian, n.arcStart); err != nil {
			return &IoError{Op: "write fst node arcStart", Err: err}
		}
		if err := binary.Write(w, binary.LittleEndian, n.arcCount); err != nil {
			return &IoError{Op: "write fst node arcCount", Err: err}
		}
		if err := binary.Write(w, binary.LittleEndian, n.output); err != nil {
			return &IoError{Op: "write fst node output", Err: err}
		}
		if err := binary.Write(w, binary.LittleEndian, n.isFinal); err != nil {
			return &IoError{Op: "write fst node isFinal", Err: err}
		}
	}
	if err := binary.Write(w, binary.LittleEndian, int32(len(f.arcs))); err != nil {
		return &IoError{Op: "write fst arc count", Err: err}
	}
	for _, a := range f.arcs {
		if err := binary.Write(w, binary.LittleEndian, a.label); err != nil {
			return &IoError{Op: "write fst arc label", Err: err}
		}
		if err := binary.Write(w, binary.LittleEndian, a.target); err != nil {
			return &IoError{Op: "write fst arc target", Err: err}
		}
	}
	return binary.Write(w, binary.LittleEndian, f.root)
}

// DeserializeFst reads the format written by Serialize.
func DeserializeFst(r *bufio.Reader) (*FstIndex, error) {
	var nodeCount int32
	if err := binary.Read(r, binary.LittleEndian, &nodeCount); err != nil {
		return nil, &IoError{Op: "read fst node count", Err: err}
	}
	if nodeCount < 0 {
		return nil, fmt.Errorf("%w: negative fst node count", ErrInvalidIndexFormat)
	}
	nodes := make([]fstNode, nodeCount)
	for i := range nodes {
		var n fstNode
		if err := binary.Read(r, binary.LittleEndian, &n.arcStart); err != nil {
			return nil, &IoError{Op: "read fst node arcStart", Err: err}
		}
		if err := binary.Read(r, binary.LittleEndian, &n.arcCount); err != nil {
			return nil, &IoError{Op: "read fst node arcCount", Err: err}
		}
		if err := binary.Read(r, binary.LittleEndian, &n.output); err != nil {
			return nil, &IoError{Op: "read fst node output", Err: err}
		}
		if err := binary.Read(r, binary.LittleEndian, &n.isFinal); err != nil {
			return nil, &IoError{Op: "read fst node isFinal", Err: err}
		}
		nodes[i] = n
	}
	var arcCount int32
	if err := binary.Read(r, binary.LittleEndian, &arcCount); err != nil {
		return nil, &IoError{Op: "read fst arc count", Err: err}
	}
	if arcCount < 0 {
		return nil, fmt.Errorf("%w: negative fst arc count", ErrInvalidIndexFormat)
	}
	arcs := make([]fstArc, arcCount)
	for i := range arcs {
		var a fstArc
		if err := binary.Read(r, binary.LittleEndian, &a.label); err != nil {
			return nil, &IoError{Op: "read fst arc label", Err: err}
		}
		if err := binary.Read(r, binary.LittleEndian, &a.target); err != nil {
			return nil, &IoError{Op: "read fst arc target", Err: err}
		}
		arcs[i] = a
	}
	var root int32
	if err := binary.Read(r, binary.LittleEndian, &root); err != nil {
		return nil, &IoError{Op: "read fst root index", Err: err}
	}
	return &FstIndex{nodes: nodes, arcs: arcs, root: root}, nil
}

// BuildSuffixFst builds the reverse FST used for suffix queries: the same
// (term, output) pairs indexed by their reversed text, per spec §4.2.
func BuildSuffixFst(terms []string, outputs []int32) (*FstIndex, error) {
	type pair struct {
		rev string
		out int32
	}
	pairs := make([]pair, len(terms))
	for i, t := range terms {
		pairs[i] = pair{rev: reverseString(t), out: outputs[i]}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].rev < pairs[j].rev })
	revs := make([]string, len(pairs))
	outs := make([]int32, len(pairs))
	for i, p := range pairs {
		revs[i] = p.rev
		outs[i] = p.out
	}
	return BuildFst(revs, outs)
}

// GetBySuffix enumerates outputs whose key ends with suffix, via the
// reverse FST built by BuildSuffixFst.
func (f *FstIndex) GetBySuffix(suffix string, out *[]int32) {
	f.GetByPrefix(reverseString(suffix), out)
}
