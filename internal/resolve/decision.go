package resolve

import (
	"sort"

	"horse.fit/convene/internal/db"
	"horse.fit/convene/internal/normalize"
	"horse.fit/convene/internal/similarity"
)

// Dispositions recorded for each resolution decision.
const (
	DispositionAutoMerged   = "auto_merged"
	DispositionNeedsReview  = "needs_review"
	DispositionKeptSeparate = "kept_separate"
)

// Thresholds partition the similarity range into dispositions. Each bound is
// inclusive on its upper segment.
type Thresholds struct {
	AutoMerge float64
	Review    float64
}

// DispositionFor maps a match confidence to its disposition.
func (t Thresholds) DispositionFor(score float64) string {
	switch {
	case score >= t.AutoMerge:
		return DispositionAutoMerged
	case score >= t.Review:
		return DispositionNeedsReview
	default:
		return DispositionKeptSeparate
	}
}

// reviewMatch is one component member queued for human review, paired with
// its score against the mention.
type reviewMatch struct {
	Candidate *db.EntityRecord
	Score     float64
}

// Decision is the outcome of matching one mention against its candidate
// bucket, before any row is written. Exactly one of AutoMerge and Review is
// populated: the whole component merges, or the whole component goes to
// review. AutoMerge is ordered oldest first.
type Decision struct {
	Disposition string
	Confidence  float64
	AutoMerge   []*db.EntityRecord
	Review      []reviewMatch
}

// decide scores the mention against every live candidate, including the
// candidate-to-candidate edges, and clusters the component around the mention
// from every pair at or above the review floor. Cluster confidence is the
// minimum pairwise score inside the component, and the whole component shares
// one disposition: a weak link anywhere prevents full trust, so a component
// held together by a gray pair goes to review rather than merging.
func decide(scorer *similarity.Scorer, thresholds Thresholds, mention Mention, candidates []db.EntityRecord) Decision {
	pairs := make([]similarity.Pair, len(candidates)+1)
	pairs[0] = similarity.Pair{Key: mention.NormalizedName, Domain: mention.Domain}
	for i := range candidates {
		pair := similarity.Pair{Key: candidates[i].NormalizedName}
		if candidates[i].Domain != nil {
			pair.Domain = normalize.Domain(*candidates[i].Domain)
		}
		pairs[i+1] = pair
	}

	edges := make([]Edge, 0, len(pairs)*(len(pairs)-1)/2)
	mentionScores := make([]float64, len(candidates))
	for i := 0; i < len(pairs); i++ {
		for j := i + 1; j < len(pairs); j++ {
			score := scorer.Score(mention.Kind, pairs[i], pairs[j])
			if i == 0 {
				mentionScores[j-1] = score
			}
			edges = append(edges, Edge{A: i, B: j, Score: score})
		}
	}

	var mentionCluster Cluster
	for _, cluster := range Clusters(len(pairs), edges, thresholds.Review) {
		if len(cluster.Members) > 0 && cluster.Members[0] == 0 {
			mentionCluster = cluster
			break
		}
	}

	if len(mentionCluster.Members) <= 1 {
		decision := Decision{Disposition: DispositionKeptSeparate}
		for _, score := range mentionScores {
			if score > decision.Confidence {
				decision.Confidence = score
			}
		}
		return decision
	}

	decision := Decision{
		Disposition: thresholds.DispositionFor(mentionCluster.Confidence),
		Confidence:  mentionCluster.Confidence,
	}
	switch decision.Disposition {
	case DispositionAutoMerged:
		for _, member := range mentionCluster.Members {
			if member != 0 {
				decision.AutoMerge = append(decision.AutoMerge, &candidates[member-1])
			}
		}
		sort.Slice(decision.AutoMerge, func(i, j int) bool {
			return decision.AutoMerge[i].EntityID < decision.AutoMerge[j].EntityID
		})
	case DispositionNeedsReview:
		for _, member := range mentionCluster.Members {
			if member != 0 {
				decision.Review = append(decision.Review, reviewMatch{
					Candidate: &candidates[member-1],
					Score:     mentionScores[member-1],
				})
			}
		}
		sort.Slice(decision.Review, func(i, j int) bool {
			if decision.Review[i].Score != decision.Review[j].Score {
				return decision.Review[i].Score > decision.Review[j].Score
			}
			return decision.Review[i].Candidate.EntityID < decision.Review[j].Candidate.EntityID
		})
	}
	return decision
}

// mergeProfiles folds a mention into the surviving entity record: missing
// attributes fill in, conflicts resolve toward the higher-confidence side,
// and confidence ratchets up.
func mergeProfiles(entity db.EntityRecord, mention Mention) db.EntityRecord {
	mentionWins := mention.Confidence > entity.Confidence

	if mentionWins {
		entity.DisplayName = mention.DisplayName
	}

	entity.Title = mergeOptional(entity.Title, mention.Title, mentionWins)
	entity.Affiliation = mergeOptional(entity.Affiliation, mention.Affiliation, mentionWins)
	entity.Industry = mergeOptional(entity.Industry, mention.Industry, mentionWins)
	entity.Category = mergeOptional(entity.Category, mention.Category, mentionWins)

	var mentionDomain *string
	if mention.Domain != "" {
		mentionDomain = &mention.Domain
	}
	entity.Domain = mergeOptional(entity.Domain, mentionDomain, mentionWins)

	if mention.Confidence > entity.Confidence {
		entity.Confidence = mention.Confidence
	}
	return entity
}

// mergeEntities folds a losing entity row into the winner under the same
// rules as mergeProfiles.
func mergeEntities(winner, loser db.EntityRecord) db.EntityRecord {
	loserWins := loser.Confidence > winner.Confidence

	if loserWins {
		winner.DisplayName = loser.DisplayName
	}

	winner.Title = mergeOptional(winner.Title, loser.Title, loserWins)
	winner.Affiliation = mergeOptional(winner.Affiliation, loser.Affiliation, loserWins)
	winner.Domain = mergeOptional(winner.Domain, loser.Domain, loserWins)
	winner.Industry = mergeOptional(winner.Industry, loser.Industry, loserWins)
	winner.Category = mergeOptional(winner.Category, loser.Category, loserWins)

	if loser.Confidence > winner.Confidence {
		winner.Confidence = loser.Confidence
	}
	return winner
}

// mergeOptional keeps the existing value unless it is missing, or the other
// side both has a value and carries higher confidence.
func mergeOptional(existing, incoming *string, incomingWins bool) *string {
	if existing == nil {
		return incoming
	}
	if incoming != nil && incomingWins {
		return incoming
	}
	return existing
}
