// internal/synthesizer/merge.go

package synthesizer

import (
	"sort"
	"strings"

	"blueprint-engine/internal/models"
)

// mergeEntities deduplicates entity references across all sources. References
// merge by normalized (name, type): casing and inner whitespace are collapsed,
// the highest confidence wins, and the source provider lists are unioned.
func mergeEntities(groups ...[]models.EntityReference) []models.EntityReference {
	type bucket struct {
		ref       models.EntityReference
		providers map[string]struct{}
	}
	merged := make(map[string]*bucket)
	order := make([]string, 0)

	for _, group := range groups {
		for _, e := range group {
			name := normalizeSpace(e.Name)
			if name == "" {
				continue
			}
			key := strings.ToLower(name) + "|" + strings.ToLower(strings.TrimSpace(e.Type))

			b, ok := merged[key]
			if !ok {
				b = &bucket{
					ref: models.EntityReference{
						Name:       name,
						Type:       strings.TrimSpace(e.Type),
						Confidence: e.Confidence,
					},
					providers: make(map[string]struct{}),
				}
				merged[key] = b
				order = append(order, key)
			}
			if e.Confidence > b.ref.Confidence {
				b.ref.Confidence = e.Confidence
				b.ref.Name = name
			}
			for _, p := range e.SourceProviders {
				b.providers[p] = struct{}{}
			}
		}
	}

	out := make([]models.EntityReference, 0, len(order))
	for _, key := range order {
		b := merged[key]
		providers := make([]string, 0, len(b.providers))
		for p := range b.providers {
			providers = append(providers, p)
		}
		sort.Strings(providers)
		b.ref.SourceProviders = providers
		out = append(out, b.ref)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Name < out[j].Name
	})
	return out
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "how": {}, "in": {}, "is": {}, "it": {},
	"of": {}, "on": {}, "or": {}, "the": {}, "to": {}, "what": {}, "why": {},
	"with": {}, "your": {}, "you": {},
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, skip := stopwords[f]; skip {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// tokenOverlap is |A ∩ B| / min(|A|, |B|) over stopword-free token sets.
func tokenOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	shared := 0
	seen := make(map[string]struct{}, len(b))
	for _, t := range b {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := set[t]; ok {
			shared++
		}
	}
	minLen := len(set)
	if len(seen) < minLen {
		minLen = len(seen)
	}
	return float64(shared) / float64(minLen)
}

type headingNode struct {
	text     string
	tokens   []string
	entities map[string]struct{} // high-confidence entities mentioned
}

// clusterHeadings groups competitor headings that share at least one
// high-confidence entity or enough token overlap. Clusters of two or more
// become topic clusters; singletons are returned as plain heading
// recommendations instead of being dropped.
func clusterHeadings(profiles []models.CompetitorProfile, entities []models.EntityReference, minConfidence, minOverlap float64) (clusters [][]string, recommendations []string) {
	highConf := make([]string, 0)
	for _, e := range entities {
		if e.Confidence >= minConfidence {
			highConf = append(highConf, strings.ToLower(e.Name))
		}
	}

	nodes := make([]headingNode, 0)
	seen := make(map[string]struct{})
	for _, p := range profiles {
		for _, h := range p.HeadingStructure {
			text := normalizeSpace(h.Text)
			if text == "" {
				continue
			}
			key := strings.ToLower(text)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			node := headingNode{text: text, tokens: tokenize(text), entities: make(map[string]struct{})}
			for _, name := range highConf {
				if strings.Contains(key, name) {
					node.entities[name] = struct{}{}
				}
			}
			nodes = append(nodes, node)
		}
	}

	parent := make([]int, len(nodes))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(i, j int) {
		ri, rj := find(i), find(j)
		if ri != rj {
			parent[rj] = ri
		}
	}

	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			if headingsRelated(nodes[i], nodes[j], minOverlap) {
				union(i, j)
			}
		}
	}

	groups := make(map[int][]string)
	groupOrder := make([]int, 0)
	for i, n := range nodes {
		root := find(i)
		if _, ok := groups[root]; !ok {
			groupOrder = append(groupOrder, root)
		}
		groups[root] = append(groups[root], n.text)
	}

	clusters = make([][]string, 0)
	recommendations = make([]string, 0)
	for _, root := range groupOrder {
		members := groups[root]
		if len(members) >= 2 {
			clusters = append(clusters, members)
		} else {
			recommendations = append(recommendations, members[0])
		}
	}
	return clusters, recommendations
}

func headingsRelated(a, b headingNode, minOverlap float64) bool {
	for name := range a.entities {
		if _, ok := b.entities[name]; ok {
			return true
		}
	}
	return tokenOverlap(a.tokens, b.tokens) >= minOverlap
}

// entitiesPresent counts how many of the merged entities already appear in
// the given text, for scoring the caller's own content.
func entitiesPresent(entities []models.EntityReference, text string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, e := range entities {
		if strings.Contains(lower, strings.ToLower(e.Name)) {
			count++
		}
	}
	return count
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
