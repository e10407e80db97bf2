package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/querylens-io/querylens/pkg/relation"
)

const (
	minInferConfidence = 0.3
	minOverlapRatio    = 0.1
	maxCategorical     = 20
	inferSampleRows    = 1000
)

// Inference is one candidate relationship found by Infer. The caller decides
// whether to add it to the graph.
type Inference struct {
	From       string             `json:"from_table"`
	To         string             `json:"to_table"`
	FromColumn string             `json:"from_column"`
	ToColumn   string             `json:"to_column"`
	Confidence float64            `json:"confidence"`
	Stats      map[string]float64 `json:"stats"`
}

// Infer proposes relationships between a newly loaded table and the existing
// ones, combining column-name matching, key/foreign-key column profiles, and
// value overlap on sampled rows. Results are sorted by confidence descending;
// only candidates above the confidence floor are returned.
func Infer(table string, rel relation.Relation, others map[string]relation.Relation) []Inference {
	newProfiles := profileColumns(rel)

	var found []Inference
	for otherName, other := range others {
		if strings.EqualFold(otherName, table) {
			continue
		}
		otherProfiles := profileColumns(other)

		for _, np := range newProfiles {
			if np.categorical {
				continue
			}
			for _, op := range otherProfiles {
				if op.categorical {
					continue
				}
				if inf, ok := inferPair(table, np, otherName, op); ok {
					found = append(found, inf)
				}
			}
		}
	}

	found = dedupeInferences(found)
	sort.Slice(found, func(i, j int) bool {
		if found[i].Confidence != found[j].Confidence {
			return found[i].Confidence > found[j].Confidence
		}
		if found[i].From != found[j].From {
			return found[i].From < found[j].From
		}
		return found[i].FromColumn < found[j].FromColumn
	})
	return found
}

type columnProfile struct {
	name        string
	values      map[string]bool
	uniqueness  float64
	keyLike     bool
	fkLike      bool
	categorical bool
}

func profileColumns(rel relation.Relation) []columnProfile {
	limit := len(rel.Rows)
	if limit > inferSampleRows {
		limit = inferSampleRows
	}

	profiles := make([]columnProfile, 0, len(rel.Columns))
	for _, col := range rel.Columns {
		values := make(map[string]bool, limit)
		nulls := 0
		for _, row := range rel.Rows[:limit] {
			v := row[col]
			if v == nil {
				nulls++
				continue
			}
			values[fmt.Sprintf("%v", v)] = true
		}

		p := columnProfile{name: col, values: values}
		if limit > 0 {
			p.uniqueness = float64(len(values)) / float64(limit)
		}
		p.keyLike = p.uniqueness > 0.9 && nulls == 0
		p.fkLike = p.uniqueness > 0.3 && p.uniqueness < 0.95
		p.categorical = len(values) <= maxCategorical && p.uniqueness < 0.1
		profiles = append(profiles, p)
	}
	return profiles
}

// inferPair scores one column pair. The foreign-key side becomes From.
func inferPair(newTable string, np columnProfile, otherTable string, op columnProfile) (Inference, bool) {
	// Referencing values should appear among the referenced ones.
	overlap := overlapRatio(np.values, op.values)
	reverseOverlap := overlapRatio(op.values, np.values)

	var from, to, fromCol, toCol string
	var nameScore, profileScore, overlapScore float64
	switch {
	case np.fkLike && op.keyLike:
		from, to, fromCol, toCol = newTable, otherTable, np.name, op.name
		profileScore = 0.6
		overlapScore = overlap
	case np.keyLike && op.fkLike:
		from, to, fromCol, toCol = otherTable, newTable, op.name, np.name
		profileScore = 0.4
		overlapScore = reverseOverlap
	default:
		from, to, fromCol, toCol = newTable, otherTable, np.name, op.name
		overlapScore = overlap
	}
	nameScore = nameSimilarity(fromCol, toCol, to)

	if overlapScore < minOverlapRatio {
		overlapScore = 0
	}
	confidence := nameScore*0.45 + profileScore*0.3 + overlapScore*0.25
	if confidence < minInferConfidence {
		return Inference{}, false
	}

	return Inference{
		From:       from,
		To:         to,
		FromColumn: fromCol,
		ToColumn:   toCol,
		Confidence: confidence,
		Stats: map[string]float64{
			"name_similarity": nameScore,
			"profile_match":   profileScore,
			"value_overlap":   overlapScore,
		},
	}, true
}

// overlapRatio is the fraction of a's values present in b.
func overlapRatio(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	hits := 0
	for v := range a {
		if b[v] {
			hits++
		}
	}
	return float64(hits) / float64(len(a))
}

// nameSimilarity scores how strongly a referencing column name points at a
// referenced table's column. "user_id" against users.id scores high.
func nameSimilarity(fromCol, toCol, toTable string) float64 {
	fc := strings.ToLower(fromCol)
	tc := strings.ToLower(toCol)
	tt := strings.ToLower(toTable)

	if fc == tc {
		return 1.0
	}
	for _, suffix := range []string{"_id", "id", "_no", "no"} {
		prefix, ok := strings.CutSuffix(fc, suffix)
		if !ok || prefix == "" {
			continue
		}
		if (tc == strings.TrimPrefix(suffix, "_") || tc == suffix) &&
			(strings.Contains(tt, prefix) || strings.Contains(prefix, tt)) {
			return 0.8
		}
	}
	if strings.Contains(fc, tc) || strings.Contains(tc, fc) {
		return 0.5
	}
	if len(fc) >= 3 && len(tc) >= 3 && (strings.HasPrefix(fc, tc[:3]) || strings.HasPrefix(tc, fc[:3])) {
		return 0.3
	}
	return 0.0
}

func dedupeInferences(list []Inference) []Inference {
	best := make(map[string]Inference, len(list))
	for _, inf := range list {
		key := inf.From + "|" + inf.To + "|" + inf.FromColumn + "|" + inf.ToColumn
		if prev, ok := best[key]; !ok || inf.Confidence > prev.Confidence {
			best[key] = inf
		}
	}
	out := make([]Inference, 0, len(best))
	for _, inf := range best {
		out = append(out, inf)
	}
	return out
}
