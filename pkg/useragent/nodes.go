package useragent

// Separators are the bytes that delimit nodes inside a normalized User-Agent.
const Separators = " /;(),[]"

// Node is a token of a normalized User-Agent anchored at its byte position.
// Two nodes are identical only when both position and text are equal.
type Node struct {
	Position int
	Text     string
}

// Nodes splits a normalized User-Agent into position-anchored tokens.
// Separator bytes never appear inside a node and empty tokens are skipped,
// so an empty or all-separator input yields no nodes.
func Nodes(normalized string) []Node {
	if normalized == "" {
		return nil
	}

	nodes := make([]Node, 0, len(normalized)/6+1)
	start := -1
	for i := 0; i < len(normalized); i++ {
		if IsSeparator(normalized[i]) {
			if start >= 0 {
				nodes = append(nodes, Node{Position: start, Text: normalized[start:i]})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		nodes = append(nodes, Node{Position: start, Text: normalized[start:]})
	}
	return nodes
}

// CharCount returns the total number of bytes covered by nodes.
func CharCount(nodes []Node) int {
	n := 0
	for _, node := range nodes {
		n += len(node.Text)
	}
	return n
}

// IsSeparator reports whether ch delimits nodes.
func IsSeparator(ch byte) bool {
	switch ch {
	case ' ', '/', ';', '(', ')', ',', '[', ']':
		return true
	}
	return false
}

// Compare orders nodes by position, then by text using byte-wise comparison.
// It is the order nodes are stored in a dataset.
func Compare(a, b Node) int {
	switch {
	case a.Position < b.Position:
		return -1
	case a.Position > b.Position:
		return 1
	case a.Text < b.Text:
		return -1
	case a.Text > b.Text:
		return 1
	}
	return 0
}
