package evidence

import (
	"fmt"
	"sort"
	"strings"
)

// Degradation records a data-quality problem found while normalizing a pack.
// Degradations never exclude a pack.
type Degradation struct {
	RuleID string `json:"ruleId"`
	Note   string `json:"note"`
}

// normalize canonicalizes and validates every item, applies the quality gate
// and sorts items. It mutates p and returns what it degraded.
func normalize(p *Pack) []Degradation {
	var out []Degradation
	for i := range p.Evidence {
		if note := validateItem(&p.Evidence[i]); note != "" {
			out = append(out, Degradation{RuleID: p.RuleID, Note: note})
		}
	}
	for i := range p.CounterEvidence {
		if note := validateItem(&p.CounterEvidence[i]); note != "" {
			out = append(out, Degradation{RuleID: p.RuleID, Note: note})
		}
	}

	if note := applyQualityGate(p); note != "" {
		out = append(out, Degradation{RuleID: p.RuleID, Note: note})
	}

	sortItems(p.Evidence)
	sortItems(p.CounterEvidence)
	return out
}

// validateItem fills the canonical URL and marks the item invalid when its
// excerpt is too long or its source type is unknown. It returns the notes
// added, joined, or "" when the item is valid.
func validateItem(it *Item) string {
	it.CanonicalURL = Canonicalize(it.URL)

	var notes []string
	if strings.TrimSpace(it.URL) == "" {
		notes = append(notes, "INVALID: missing url")
	}
	if n := len(strings.Fields(it.Excerpt)); n > MaxExcerptWords {
		notes = append(notes, fmt.Sprintf("INVALID: excerpt has %d words, max %d", n, MaxExcerptWords))
	}
	if !knownSourceTypes[it.SourceType] {
		notes = append(notes, fmt.Sprintf("INVALID source type %q", it.SourceType))
	}
	if len(notes) == 0 {
		return ""
	}

	it.Invalid = true
	joined := strings.Join(notes, "; ")
	if it.ValidityNote == "" {
		it.ValidityNote = joined
	} else {
		it.ValidityNote = it.ValidityNote + "; " + joined
	}
	return joined
}

// applyQualityGate downgrades confidence based on the valid supporting items.
// Without primary evidence the pack drops to low confidence and needs
// verification. With only lowest-trust evidence it drops one level.
func applyQualityGate(p *Pack) string {
	primary := 0
	community := 0
	for _, it := range p.Evidence {
		if it.Invalid || strings.TrimSpace(it.Excerpt) == "" {
			continue
		}
		primary++
		if it.SourceType == SourceCommunity {
			community++
		}
	}

	switch {
	case primary == 0:
		p.Confidence = ConfidenceLow
		p.NeedsVerification = true
		return "no primary evidence; confidence forced to low"
	case community == primary && p.Confidence != ConfidenceLow:
		from := p.Confidence
		p.Confidence = p.Confidence.Downgrade()
		return fmt.Sprintf("only community evidence; confidence %s -> %s", from, p.Confidence)
	}
	return ""
}

// sortItems orders items by canonical URL, falling back to the raw URL,
// comparing bytes.
func sortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].sortKey() < items[j].sortKey()
	})
}
