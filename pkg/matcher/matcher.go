package matcher

import (
	"cmp"

	"github.com/dmitrymomot/devicedetect/pkg/dataset"
	"github.com/dmitrymomot/devicedetect/pkg/useragent"
)

// Signatures is the read access a Matcher needs. *dataset.Dataset
// implements it.
type Signatures interface {
	SignatureByKey(key string) (*dataset.Signature, error)
	FindNode(position int32, text string) (*dataset.Node, error)
	Signature(i int) (*dataset.Signature, error)
}

// Matcher finds signatures for User-Agents.
type Matcher struct {
	sigs Signatures
}

// New returns a Matcher reading from sigs.
func New(sigs Signatures) *Matcher {
	return &Matcher{sigs: sigs}
}

// Match normalizes ua and resolves it to a signature.
func (m *Matcher) Match(ua string) (Result, error) {
	return m.MatchNormalized(useragent.Normalize(ua))
}

// MatchNormalized resolves a User-Agent that already went through
// useragent.Normalize.
func (m *Matcher) MatchNormalized(target string) (Result, error) {
	if target == "" {
		return Result{}, nil
	}

	sig, err := m.sigs.SignatureByKey(target)
	if err != nil {
		return Result{}, err
	}
	if sig != nil {
		return Result{
			Method:       MethodExact,
			Signature:    sig,
			NodesMatched: len(sig.NodeIndices),
		}, nil
	}
	return m.closest(target)
}

type tally struct {
	nodes int
	chars int
}

type candidate struct {
	sig   *dataset.Signature
	nodes int
	diff  int
}

// better reports whether a ranks above b.
func better(a, b candidate) bool {
	if a.nodes != b.nodes {
		return a.nodes > b.nodes
	}
	if a.diff != b.diff {
		return a.diff < b.diff
	}
	if n := cmp.Compare(a.sig.Rank, b.sig.Rank); n != 0 {
		return n < 0
	}
	return a.sig.Index < b.sig.Index
}

func (m *Matcher) closest(target string) (Result, error) {
	nodes := useragent.Nodes(target)
	targetChars := useragent.CharCount(nodes)

	tallies := make(map[int32]*tally)
	for _, n := range nodes {
		dn, err := m.sigs.FindNode(int32(n.Position), n.Text)
		if err != nil {
			return Result{}, err
		}
		if dn == nil {
			continue
		}
		for _, si := range dn.SignatureIndices {
			t := tallies[si]
			if t == nil {
				t = &tally{}
				tallies[si] = t
			}
			t.nodes++
			t.chars += len(n.Text)
		}
	}

	var best *candidate
	for si, t := range tallies {
		sig, err := m.sigs.Signature(int(si))
		if err != nil {
			return Result{}, err
		}
		c := candidate{
			sig:   sig,
			nodes: t.nodes,
			diff:  (int(sig.NodeChars) - t.chars) + (targetChars - t.chars),
		}
		if best == nil || better(c, *best) {
			best = &c
		}
	}
	if best == nil {
		return Result{}, nil
	}
	return Result{
		Method:       MethodClosest,
		Signature:    best.sig,
		Difference:   best.diff,
		NodesMatched: best.nodes,
	}, nil
}
