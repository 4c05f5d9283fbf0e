// Package linker post-processes rendered article HTML, wrapping known
// keyword phrases in links to internal destinations under count and
// placement constraints.
package linker

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Candidate is one keyword phrase and its destination URL.
type Candidate struct {
	Phrase string
	URL    string
}

// Options bound how many links may be inserted.
type Options struct {
	// MaxPerKeyword caps insertions per distinct phrase (default 1).
	MaxPerKeyword int
	// MaxTotal caps insertions across the whole body (default 8).
	MaxTotal int
}

func (o Options) withDefaults() Options {
	if o.MaxPerKeyword <= 0 {
		o.MaxPerKeyword = 1
	}
	if o.MaxTotal <= 0 {
		o.MaxTotal = 8
	}
	return o
}

// excludedElements are zones links must never be inserted into.
var excludedElements = map[string]bool{
	"a": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// InsertLinks scans body left to right and wraps the first unlinked
// occurrence of each candidate phrase in an anchor, skipping text inside
// headings and existing links. Longer phrases are matched before shorter
// overlapping ones. Returns the rewritten body and the number of links
// inserted.
func InsertLinks(body string, candidates []Candidate, opts Options) (string, int, error) {
	opts = opts.withDefaults()
	if len(candidates) == 0 {
		return body, 0, nil
	}

	// Longest phrase first so "metal roofing" wins over "roofing".
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Phrase) > len(sorted[j].Phrase)
	})

	nodes, err := html.ParseFragment(strings.NewReader(body), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return "", 0, fmt.Errorf("parsing body: %w", err)
	}

	w := &walker{
		candidates: sorted,
		used:       make(map[string]int, len(sorted)),
		opts:       opts,
	}
	for _, n := range nodes {
		w.walk(n, false)
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", 0, fmt.Errorf("rendering body: %w", err)
		}
	}
	return buf.String(), w.inserted, nil
}

type walker struct {
	candidates []Candidate
	used       map[string]int
	opts       Options
	inserted   int
}

func (w *walker) walk(n *html.Node, excluded bool) {
	if w.inserted >= w.opts.MaxTotal {
		return
	}

	if n.Type == html.ElementNode && excludedElements[n.Data] {
		excluded = true
	}

	if n.Type == html.TextNode && !excluded {
		w.linkText(n)
		return
	}

	// Children are collected first: linkText splices new siblings in, and
	// those must not be revisited as part of this pass.
	var children []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, c)
	}
	for _, c := range children {
		w.walk(c, excluded)
	}
}

// linkText replaces the first match of the highest-priority remaining
// candidate inside the text node, then continues on the tail text.
func (w *walker) linkText(n *html.Node) {
	for w.inserted < w.opts.MaxTotal {
		cand, start, end := w.firstMatch(n.Data)
		if start < 0 {
			return
		}

		matched := n.Data[start:end]
		tail := n.Data[end:]
		n.Data = n.Data[:start]

		link := &html.Node{
			Type:     html.ElementNode,
			Data:     "a",
			DataAtom: atom.A,
			Attr:     []html.Attribute{{Key: "href", Val: cand.URL}},
		}
		link.AppendChild(&html.Node{Type: html.TextNode, Data: matched})

		parent := n.Parent
		parent.InsertBefore(link, n.NextSibling)
		tailNode := &html.Node{Type: html.TextNode, Data: tail}
		parent.InsertBefore(tailNode, link.NextSibling)

		w.used[strings.ToLower(cand.Phrase)]++
		w.inserted++
		n = tailNode
	}
}

// firstMatch returns the leftmost eligible candidate match in text along
// with its byte bounds in text. Ties on position go to the longer phrase
// (candidates are pre-sorted).
func (w *walker) firstMatch(text string) (Candidate, int, int) {
	lower, offsets := lowerOffsets(text)
	start, end := -1, -1
	var bestCand Candidate
	for _, cand := range w.candidates {
		phrase := strings.ToLower(cand.Phrase)
		if w.used[phrase] >= w.opts.MaxPerKeyword {
			continue
		}
		idx := strings.Index(lower, phrase)
		if idx < 0 {
			continue
		}
		if origStart := offsets[idx]; start < 0 || origStart < start {
			start = origStart
			end = offsets[idx+len(phrase)]
			bestCand = cand
		}
	}
	return bestCand, start, end
}

// lowerOffsets lowercases s and returns a table mapping every byte
// position of the lowered string (end position included) back to the
// position in s it was derived from. Lowercasing can change rune widths,
// so match indexes in the lowered string are not valid offsets into s.
func lowerOffsets(s string) (string, []int) {
	var b strings.Builder
	b.Grow(len(s))
	offsets := make([]int, 0, len(s)+1)
	for i, r := range s {
		lr := unicode.ToLower(r)
		for range utf8.RuneLen(lr) {
			offsets = append(offsets, i)
		}
		b.WriteRune(lr)
	}
	offsets = append(offsets, len(s))
	return b.String(), offsets
}
