// Package titles picks free destination titles for files whose names are already taken.
package titles

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/mtc/internal/rewrite"
)

const (
	sequentialCandidateCount = 10
	randomSuffixMinimum      = 1000
	randomSuffixMaximum      = 1000000

	candidateWithExtensionFormat    = "%s %d.%s"
	candidateWithoutExtensionFormat = "%s %d"

	filterExistingErrorFormat   = "filter existing destination titles: %w: %w"
	filterCandidatesErrorFormat = "filter alternate titles for %s: %w: %w"
)

// Status describes how far a candidate got during resolution.
type Status string

const (
	// StatusResolved means the destination title is free to use.
	StatusResolved Status = "resolved"
	// StatusNeedsAlternate means the source name is taken on the destination.
	StatusNeedsAlternate Status = "needs-alternate"
	// StatusExhausted means every alternate was taken too.
	StatusExhausted Status = "exhausted"
)

// Candidate pairs a source title with the destination title chosen for it.
type Candidate struct {
	Source      string
	Destination string
	Status      Status
}

// RandomSource supplies the random suffix of the last-resort candidate.
type RandomSource interface {
	IntN(n int) int
}

// Deduplicator resolves destination title collisions through an existence oracle.
type Deduplicator struct {
	oracle rewrite.Oracle
	random RandomSource
	logger *zap.Logger
}

// NewDeduplicator creates a Deduplicator. A nil random source falls back to a process-seeded generator.
func NewDeduplicator(oracle rewrite.Oracle, random RandomSource, logger *zap.Logger) *Deduplicator {
	if random == nil {
		random = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduplicator{oracle: oracle, random: random, logger: logger}
}

// Resolve returns one candidate per source title, in input order. A title
// whose alternates are all taken is returned with StatusExhausted and an empty destination.
func (deduplicator *Deduplicator) Resolve(ctx context.Context, sourceTitles []string) ([]Candidate, error) {
	candidates := make([]Candidate, len(sourceTitles))
	for index, sourceTitle := range sourceTitles {
		candidates[index] = Candidate{Source: sourceTitle, Destination: sourceTitle, Status: StatusResolved}
	}
	if len(sourceTitles) == 0 {
		return candidates, nil
	}

	takenTitles, filterError := deduplicator.oracle.Filter(ctx, sourceTitles, true)
	if filterError != nil {
		return nil, fmt.Errorf(filterExistingErrorFormat, rewrite.ErrOracleUnavailable, filterError)
	}
	taken := make(map[string]struct{}, len(takenTitles))
	for _, takenTitle := range takenTitles {
		taken[takenTitle] = struct{}{}
	}

	for index := range candidates {
		if _, isTaken := taken[candidates[index].Source]; !isTaken {
			continue
		}
		candidates[index].Status = StatusNeedsAlternate
		alternate, alternateError := deduplicator.alternate(ctx, candidates[index].Source)
		if alternateError != nil {
			return nil, alternateError
		}
		if alternate == "" {
			candidates[index].Destination = ""
			candidates[index].Status = StatusExhausted
			deduplicator.logger.Warn("no free destination title", zap.String("title", candidates[index].Source))
			continue
		}
		candidates[index].Destination = alternate
		candidates[index].Status = StatusResolved
	}
	return candidates, nil
}

// alternate returns the last free candidate in query order, or "" when every candidate is taken.
func (deduplicator *Deduplicator) alternate(ctx context.Context, title string) (string, error) {
	freeCandidates, filterError := deduplicator.oracle.Filter(ctx, deduplicator.Alternates(title), false)
	if filterError != nil {
		return "", fmt.Errorf(filterCandidatesErrorFormat, title, rewrite.ErrOracleUnavailable, filterError)
	}
	if len(freeCandidates) == 0 {
		return "", nil
	}
	return freeCandidates[len(freeCandidates)-1], nil
}

// Alternates lists the candidate titles for title in query order: the random
// last resort first, then the numbered names from 1 to 10. Picking the last free
// entry therefore prefers the highest free number.
func (deduplicator *Deduplicator) Alternates(title string) []string {
	base, extension := splitExtension(title)
	alternates := make([]string, 0, sequentialCandidateCount+1)
	randomSuffix := randomSuffixMinimum + deduplicator.random.IntN(randomSuffixMaximum-randomSuffixMinimum+1)
	alternates = append(alternates, formatCandidate(base, randomSuffix, extension))
	for suffix := 1; suffix <= sequentialCandidateCount; suffix++ {
		alternates = append(alternates, formatCandidate(base, suffix, extension))
	}
	return alternates
}

func splitExtension(title string) (string, string) {
	dotIndex := strings.LastIndex(title, ".")
	if dotIndex < 0 {
		return title, ""
	}
	return title[:dotIndex], title[dotIndex+1:]
}

func formatCandidate(base string, suffix int, extension string) string {
	if extension == "" {
		return fmt.Sprintf(candidateWithoutExtensionFormat, base, suffix)
	}
	return fmt.Sprintf(candidateWithExtensionFormat, base, suffix, extension)
}

// Destinations maps every source title to its destination. Exhausted titles map to "".
func Destinations(candidates []Candidate) map[string]string {
	destinations := make(map[string]string, len(candidates))
	for _, candidate := range candidates {
		destinations[candidate.Source] = candidate.Destination
	}
	return destinations
}
