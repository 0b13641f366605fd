package memory

import (
	"context"
	"fmt"
	"strings"
)

const (
	// RecentTopic triggers the generic recency query below instead of a
	// verbatim topic search. Keyword matching stands in for true recency
	// ranking; the index exposes no timestamp sort.
	RecentTopic = "recent"
	recentQuery = "recent conversation important memory significant moment"

	// GroundingLimit and GroundingMinScore deliberately cast a wider net
	// than regular search to maximise context recall.
	GroundingLimit    = 20
	GroundingMinScore = 0.5

	// DefaultMaxTokens bounds the assembled context when the caller does
	// not supply a budget.
	DefaultMaxTokens = 2000
)

// Assembler builds token-bounded session-start context bundles out of
// retrieved memories.
type Assembler struct {
	retriever *Retriever
}

func NewAssembler(retriever *Retriever) *Assembler {
	return &Assembler{retriever: retriever}
}

// GroundingContext is the assembled bundle plus its packing accounting.
type GroundingContext struct {
	Context       string `json:"context"`
	TokenEstimate int    `json:"token_estimate"`
	Included      int    `json:"memories_included"`
	Candidates    int    `json:"candidates_available"`
}

/*
Assemble runs a broad retrieval for the topic and greedily packs the
resulting attribution blocks, in retrieval order, into maxTokens
(estimated as ceil(chars/4)). Packing stops at the first block that would
exceed the budget; later, smaller blocks are not pulled forward.
*/
func (a *Assembler) Assemble(
	ctx context.Context, topic, entity string, maxTokens int,
) (*GroundingContext, error) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	if entity == "" {
		entity = FilterAll
	}

	query := topic

	if strings.EqualFold(topic, RecentTopic) {
		query = recentQuery
	}

	results, err := a.retriever.Search(ctx, SearchParams{
		Query:    query,
		Entity:   entity,
		Limit:    GroundingLimit,
		MinScore: GroundingMinScore,
	})

	if err != nil {
		return nil, err
	}

	builder := &strings.Builder{}
	header := fmt.Sprintf("Grounding context for %q (entity: %s)\n\n", topic, entity)
	builder.WriteString(header)

	tokens := EstimateTokens(header)
	bundle := &GroundingContext{Candidates: len(results)}

	for _, result := range results {
		block := result.Attribution + "\n"
		cost := EstimateTokens(block)

		if tokens+cost > maxTokens {
			break
		}

		builder.WriteString(block)
		tokens += cost
		bundle.Included++
	}

	bundle.Context = builder.String()
	bundle.TokenEstimate = tokens

	return bundle, nil
}
