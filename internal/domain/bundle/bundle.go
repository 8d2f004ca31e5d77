// Package bundle assembles heterogeneous evidence into one bounded,
// precedence-ordered context for answer synthesis.
package bundle

import (
	"sort"

	"github.com/finbrief/finbrief/internal/domain"
)

// Kind classifies a context item.
type Kind string

// Context item kinds.
const (
	KindQuote    Kind = "quote"
	KindMetric   Kind = "metric"
	KindEarnings Kind = "earnings"
	KindPassage  Kind = "passage"
	KindNews     Kind = "news"
)

// Item is one typed piece of evidence with its origin and relevance weight.
//
// Weights encode the precedence bands: structured numeric data lands in
// [2,3), retrieved passages in [1,2) ordered by score, news in [0,1)
// ordered by recency. Budget trimming drops whole items ascending by
// weight, so lower bands always go first.
type Item struct {
	kind   Kind
	origin string
	weight float64
	text   string
}

// NewItem creates a context item.
func NewItem(kind Kind, origin string, weight float64, text string) Item {
	return Item{kind: kind, origin: origin, weight: weight, text: text}
}

// Kind returns the item classification.
func (i Item) Kind() Kind { return i.kind }

// Origin returns the service or document id this item came from.
func (i Item) Origin() string { return i.origin }

// Weight returns the relevance weight.
func (i Item) Weight() float64 { return i.weight }

// Text returns the serialized item content.
func (i Item) Text() string { return i.text }

// Structured reports whether the item carries structured numeric data.
func (i Item) Structured() bool {
	return i.kind == KindQuote || i.kind == KindMetric || i.kind == KindEarnings
}

// Bundle is the ordered evidence for one query, plus the dispatch outcome
// needed for the degraded flag and the confidence score.
type Bundle struct {
	items       []Item
	failed      []domain.Service
	planned     int
	succeeded   int
	passageMean float64
}

// New creates a bundle. Items are reordered descending by weight.
func New(items []Item, failed []domain.Service, planned, succeeded int, passageMean float64) Bundle {
	ordered := make([]Item, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].weight > ordered[b].weight
	})
	return Bundle{
		items:       ordered,
		failed:      failed,
		planned:     planned,
		succeeded:   succeeded,
		passageMean: passageMean,
	}
}

// Items returns the context items, descending by weight.
func (b Bundle) Items() []Item { return b.items }

// Empty reports whether the bundle carries no evidence at all.
func (b Bundle) Empty() bool { return len(b.items) == 0 }

// FailedServices returns the planned units that did not succeed.
func (b Bundle) FailedServices() []domain.Service { return b.failed }

// Degraded reports whether any planned unit of work failed.
func (b Bundle) Degraded() bool { return len(b.failed) > 0 }

// Coverage returns the fraction of planned units that succeeded, 1 when
// nothing was planned.
func (b Bundle) Coverage() float64 {
	if b.planned == 0 {
		return 1
	}
	return float64(b.succeeded) / float64(b.planned)
}

// PassageMeanScore returns the mean retrieval score of the passages used.
func (b Bundle) PassageMeanScore() float64 { return b.passageMean }

// HasPassages reports whether the bundle holds any retrieved passages.
func (b Bundle) HasPassages() bool {
	for _, it := range b.items {
		if it.kind == KindPassage {
			return true
		}
	}
	return false
}

// Sources returns the distinct origins of all items, in bundle order.
func (b Bundle) Sources() []string {
	seen := make(map[string]struct{}, len(b.items))
	out := make([]string, 0, len(b.items))
	for _, it := range b.items {
		if _, ok := seen[it.origin]; ok {
			continue
		}
		seen[it.origin] = struct{}{}
		out = append(out, it.origin)
	}
	return out
}

// TrimToBudget returns a copy of the bundle whose total item text size fits
// maxChars. Whole items are dropped ascending by weight, never split, so the
// highest-precedence evidence survives intact. maxChars <= 0 disables the
// budget.
func (b Bundle) TrimToBudget(maxChars int) Bundle {
	if maxChars <= 0 || b.size() <= maxChars {
		return b
	}

	kept := make([]Item, len(b.items))
	copy(kept, b.items)
	for len(kept) > 0 {
		total := 0
		for _, it := range kept {
			total += len(it.text)
		}
		if total <= maxChars {
			break
		}
		// items are ordered descending by weight, so the last one is the
		// cheapest to lose
		kept = kept[:len(kept)-1]
	}

	trimmed := b
	trimmed.items = kept
	return trimmed
}

// StructuredOnly returns a copy of the bundle holding only structured
// numeric items. Used for the higher-precedence retry in the synthesis gate.
func (b Bundle) StructuredOnly() Bundle {
	var kept []Item
	for _, it := range b.items {
		if it.Structured() {
			kept = append(kept, it)
		}
	}
	trimmed := b
	trimmed.items = kept
	return trimmed
}

func (b Bundle) size() int {
	total := 0
	for _, it := range b.items {
		total += len(it.text)
	}
	return total
}
