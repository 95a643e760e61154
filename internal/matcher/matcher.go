package matcher

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/technostationary/mediabulk/internal/config"
	"github.com/technostationary/mediabulk/internal/manifest"
	"github.com/technostationary/mediabulk/internal/normalize"
	"github.com/technostationary/mediabulk/pkg/models"
)

// Similarity reported by each non-fuzzy strategy; fuzzy reports its
// computed score.
const (
	simExact   = 1.0
	simPartial = 0.9
	simRef     = 0.85
)

// Result is the complete output of one matching pass.
type Result struct {
	Matches        []models.Match
	UnmatchedRows  []models.ManifestRow
	UnmatchedFiles []*models.ImageFile
	Stats          models.Stats
}

// candidate is one image file with its precomputed normal forms and
// claim state. The claim set never leaves this package.
type candidate struct {
	file *models.ImageFile
	// rawExact is the extension-stripped name with case preserved.
	// The exact tier compares bytes; case-insensitive equality is the
	// normalized tier's job (scenario: FRONT.png must fall through to
	// a second row's normalized match, not ride along as an exact
	// duplicate of front.jpg).
	rawExact string
	forms    normalize.Forms
	foldedN  string // case-folded original name, for the ref strategy
	claimed  bool
}

// Match assigns images to manifest rows using the fixed strategy
// cascade exact → normalized → partial → fuzzy → ref. Pure over its
// inputs: same manifest, files and settings yield the same result.
func Match(man *manifest.Manifest, files []*models.ImageFile, settings *config.Settings) *Result {
	caseSensitive := settings.FileHandling.CaseSensitive
	partialLen := settings.Thresholds.PartialLength

	candidates := make([]*candidate, 0, len(files))
	for _, f := range files {
		candidates = append(candidates, &candidate{
			file:     f,
			rawExact: normalize.StripExt(f.OriginalName),
			forms:    normalize.FormsOf(f.OriginalName, caseSensitive, partialLen),
			foldedN:  normalize.Fold(f.OriginalName, caseSensitive),
		})
	}
	// Scan order is lexicographic so that the first satisfying
	// candidate is also the tie-break winner.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].file.OriginalName < candidates[j].file.OriginalName
	})

	result := &Result{
		Stats: models.Stats{ByStrategy: make(map[models.Strategy]int)},
	}
	skuCount := make(map[string]int)
	var similaritySum float64

	for _, row := range man.Rows {
		rowForms := normalize.FormsOf(row.Image, caseSensitive, partialLen)

		primary, strategy, score := claimPrimary(candidates, row, rowForms, man.HasRef(), settings)
		if primary == nil {
			result.UnmatchedRows = append(result.UnmatchedRows, row)
			continue
		}
		primary.claimed = true

		group := []*candidate{primary}
		scores := []float64{score}
		if settings.FileHandling.MultipleImages {
			extra, extraScores := claimAdditional(candidates, row, rowForms, strategy, settings)
			group = append(group, extra...)
			scores = append(scores, extraScores...)
		}

		for i, c := range group {
			idx := skuCount[row.SKU]
			skuCount[row.SKU] = idx + 1

			m := models.Match{
				SKU:         row.SKU,
				Ref:         row.Ref,
				File:        c.file,
				Strategy:    strategy,
				Similarity:  scores[i],
				ImageIndex:  idx,
				IsMainImage: idx == 0,
				FinalName:   finalName(row.Image, c.file.OriginalName, idx),
			}
			result.Matches = append(result.Matches, m)
			result.Stats.ByStrategy[strategy]++
			similaritySum += scores[i]
		}
	}

	for i := range result.Matches {
		result.Matches[i].TotalImagesForSKU = skuCount[result.Matches[i].SKU]
	}

	for _, c := range candidates {
		if !c.claimed {
			result.UnmatchedFiles = append(result.UnmatchedFiles, c.file)
		}
	}

	result.Stats.UniqueProducts = len(skuCount)
	for _, n := range skuCount {
		if n > 1 {
			result.Stats.MultipleImagesProducts++
		}
	}
	if len(result.Matches) > 0 {
		result.Stats.AverageSimilarity = similaritySum / float64(len(result.Matches))
	}

	return result
}

// claimPrimary walks the strategy cascade for one row and returns the
// winning unclaimed candidate, if any. Candidates are scanned in
// lexicographic order, so equal scores resolve to the smallest name.
func claimPrimary(candidates []*candidate, row models.ManifestRow, rowForms normalize.Forms,
	hasRefColumn bool, settings *config.Settings) (*candidate, models.Strategy, float64) {

	s := settings.Strategies
	rowRaw := normalize.StripExt(strings.TrimSpace(row.Image))

	if s.Exact {
		for _, c := range candidates {
			if !c.claimed && c.rawExact == rowRaw {
				return c, models.StrategyExact, simExact
			}
		}
	}
	if s.Normalized {
		for _, c := range candidates {
			if !c.claimed && matchesNormalized(c, rowForms) {
				return c, models.StrategyNormalized, simExact
			}
		}
	}
	if s.Partial {
		for _, c := range candidates {
			if !c.claimed && matchesPartial(c, rowForms) {
				return c, models.StrategyPartial, simPartial
			}
		}
	}
	if s.Fuzzy {
		var best *candidate
		bestScore := 0.0
		for _, c := range candidates {
			if c.claimed {
				continue
			}
			score := Similarity(c.forms.Normalized, rowForms.Normalized)
			if score >= settings.Thresholds.FuzzyThreshold && score > bestScore {
				best, bestScore = c, score
			}
		}
		if best != nil {
			return best, models.StrategyFuzzy, bestScore
		}
	}
	if s.Ref && hasRefColumn && row.Ref != "" {
		folded := normalize.Fold(row.Ref, settings.FileHandling.CaseSensitive)
		for _, c := range candidates {
			if !c.claimed && strings.Contains(c.foldedN, folded) {
				return c, models.StrategyRef, simRef
			}
		}
	}

	return nil, "", 0
}

// claimAdditional collects further unclaimed files that satisfy the
// winning strategy for the same row. Lexicographic candidate order
// makes the ordering of indexes 1..N-1 deterministic.
func claimAdditional(candidates []*candidate, row models.ManifestRow, rowForms normalize.Forms,
	strategy models.Strategy, settings *config.Settings) ([]*candidate, []float64) {

	var extra []*candidate
	var scores []float64
	rowRaw := normalize.StripExt(strings.TrimSpace(row.Image))

	for _, c := range candidates {
		if c.claimed {
			continue
		}
		switch strategy {
		case models.StrategyExact:
			if c.rawExact == rowRaw {
				extra = append(extra, c)
				scores = append(scores, simExact)
			}
		case models.StrategyNormalized:
			if matchesNormalized(c, rowForms) {
				extra = append(extra, c)
				scores = append(scores, simExact)
			}
		case models.StrategyPartial:
			if matchesPartial(c, rowForms) {
				extra = append(extra, c)
				scores = append(scores, simPartial)
			}
		case models.StrategyFuzzy:
			if score := Similarity(c.forms.Normalized, rowForms.Normalized); score >= settings.Thresholds.FuzzyThreshold {
				extra = append(extra, c)
				scores = append(scores, score)
			}
		case models.StrategyRef:
			folded := normalize.Fold(row.Ref, settings.FileHandling.CaseSensitive)
			if strings.Contains(c.foldedN, folded) {
				extra = append(extra, c)
				scores = append(scores, simRef)
			}
		}
	}

	for _, c := range extra {
		c.claimed = true
	}
	return extra, scores
}

func matchesNormalized(c *candidate, rowForms normalize.Forms) bool {
	return c.forms.Normalized != "" && c.forms.Normalized == rowForms.Normalized
}

func matchesPartial(c *candidate, rowForms normalize.Forms) bool {
	if rowForms.PartialPrefix != "" && strings.HasPrefix(c.forms.Normalized, rowForms.PartialPrefix) {
		return true
	}
	return c.forms.PartialPrefix != "" && strings.HasPrefix(rowForms.Normalized, c.forms.PartialPrefix)
}

// finalName derives the upload name from the row's image value: index 0
// is <image>.<ext>, index k is <image>_k.<ext>. The extension comes
// from the claimed file.
func finalName(imageValue, originalName string, index int) string {
	base := normalize.StripExt(imageValue)
	ext := filepath.Ext(originalName)
	if index == 0 {
		return base + ext
	}
	return fmt.Sprintf("%s_%d%s", base, index, ext)
}
