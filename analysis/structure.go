package analysis

import (
	"context"

	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/parser"
	"github.com/Alex1986-rgb/seomagic-saas-tool-sub002/internal/urlutil"
)

const (
	dampingFactor      = 0.85
	pageRankIterations = 10
	rankTotal          = 100.0
)

// PageNode is one sampled page of the link graph.
type PageNode struct {
	URL           string  `json:"url" yaml:"url"`
	Title         string  `json:"title" yaml:"title"`
	IncomingLinks int     `json:"incomingLinks" yaml:"incomingLinks"`
	OutgoingLinks int     `json:"outgoingLinks" yaml:"outgoingLinks"`
	PageRank      float64 `json:"pageRank" yaml:"pageRank"`
	Level         int     `json:"level" yaml:"level"`
}

// Edge links Nodes[Source] to Nodes[Target]. Strength counts the anchors behind it.
type Edge struct {
	Source   int `json:"source" yaml:"source"`
	Target   int `json:"target" yaml:"target"`
	Strength int `json:"strength" yaml:"strength"`
}

// SiteStructure is the internal link graph. PageRank values sum to 100.
type SiteStructure struct {
	Nodes []PageNode `json:"nodes" yaml:"nodes"`
	Edges []Edge     `json:"edges" yaml:"edges"`
}

// Structure builds the link graph between up to 200 sampled pages of domain and ranks them.
// URLs are compared without query and fragment. Links to pages outside the sample and
// self links are not edges.
func (a *Analyzer) Structure(
	ctx context.Context,
	domain string,
	urls []string,
	onProgress ProgressFunc,
) (SiteStructure, error) {
	normalized := make([]string, 0, len(urls))
	for _, raw := range urls {
		normalized = append(normalized, urlutil.StripQueryAndFragment(raw))
	}
	sampled := sample(normalized, structureSample)

	graph := SiteStructure{Nodes: make([]PageNode, len(sampled)), Edges: []Edge{}}
	index := make(map[string]int, len(sampled))
	for i, rawURL := range sampled {
		index[rawURL] = i
		graph.Nodes[i] = PageNode{URL: rawURL, Level: urlutil.PathDepth(rawURL)}
	}

	edgeIndex := map[[2]int]int{}
	for i, rawURL := range sampled {
		if err := ctx.Err(); err != nil {
			return graph, err
		}

		loaded := a.loadOrSkip(ctx, "structure", rawURL)
		if err := ctx.Err(); err != nil {
			return graph, err
		}

		if loaded != nil {
			graph.Nodes[i].Title = parser.Title(loaded.doc)
			for _, link := range parser.Links(loaded.doc) {
				target, ok := urlutil.Resolve(loaded.url, link.Href)
				if !ok || (domain != "" && !urlutil.SameDomain(domain, target)) {
					continue
				}

				j, ok := index[urlutil.StripQueryAndFragment(target)]
				if !ok || j == i {
					continue
				}

				key := [2]int{i, j}
				if pos, ok := edgeIndex[key]; ok {
					graph.Edges[pos].Strength++

					continue
				}

				edgeIndex[key] = len(graph.Edges)
				graph.Edges = append(graph.Edges, Edge{Source: i, Target: j, Strength: 1})
			}
		}

		report(onProgress, i+1, len(sampled))
	}

	for _, edge := range graph.Edges {
		graph.Nodes[edge.Source].OutgoingLinks++
		graph.Nodes[edge.Target].IncomingLinks++
	}

	ranks := PageRank(len(graph.Nodes), graph.Edges)
	for i := range graph.Nodes {
		graph.Nodes[i].PageRank = ranks[i]
	}

	return graph, nil
}

// PageRank runs ten power iterations with damping 0.85 from a uniform start and
// rescales the result to sum to 100. Nodes without outgoing edges count as having one.
func PageRank(n int, edges []Edge) []float64 {
	if n == 0 {
		return []float64{}
	}

	outDegree := make([]int, n)
	for _, edge := range edges {
		outDegree[edge.Source]++
	}
	for i := range outDegree {
		outDegree[i] = max(outDegree[i], 1)
	}

	ranks := make([]float64, n)
	for i := range ranks {
		ranks[i] = 1 / float64(n)
	}

	for range pageRankIterations {
		next := make([]float64, n)
		for i := range next {
			next[i] = (1 - dampingFactor) / float64(n)
		}
		for _, edge := range edges {
			next[edge.Target] += dampingFactor * ranks[edge.Source] / float64(outDegree[edge.Source])
		}
		ranks = next
	}

	total := 0.0
	for _, rank := range ranks {
		total += rank
	}
	for i := range ranks {
		ranks[i] = ranks[i] / total * rankTotal
	}

	return ranks
}
