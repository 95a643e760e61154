package matcher

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/technostationary/mediabulk/internal/config"
	"github.com/technostationary/mediabulk/internal/manifest"
	"github.com/technostationary/mediabulk/pkg/models"
)

func parseManifest(t *testing.T, csv string) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Parse(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	return m
}

func imageFiles(names ...string) []*models.ImageFile {
	files := make([]*models.ImageFile, len(names))
	for i, n := range names {
		files[i] = &models.ImageFile{
			OriginalName: n,
			Bytes:        []byte{0xFF, 0xD8},
			DeclaredType: "image/jpeg",
			SizeBytes:    2,
		}
	}
	return files
}

func TestExactThenNormalizedCascade(t *testing.T) {
	// Two rows want the same base name; the case-folded duplicate must
	// fall through to the second row via the normalized tier instead of
	// riding along as an extra exact match for the first.
	man := parseManifest(t, "sku,image\nA-100,front\nA-200,front\n")
	files := imageFiles("front.jpg", "FRONT.png")

	res := Match(man, files, config.DefaultSettings())
	if len(res.Matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(res.Matches))
	}

	first := res.Matches[0]
	if first.SKU != "A-100" || first.File.OriginalName != "front.jpg" ||
		first.Strategy != models.StrategyExact || first.Similarity != 1.0 {
		t.Errorf("first match = %+v", first)
	}
	if !first.IsMainImage || first.ImageIndex != 0 || first.FinalName != "front.jpg" {
		t.Errorf("first match naming = %+v", first)
	}

	second := res.Matches[1]
	if second.SKU != "A-200" || second.File.OriginalName != "FRONT.png" ||
		second.Strategy != models.StrategyNormalized || second.Similarity != 1.0 {
		t.Errorf("second match = %+v", second)
	}
	if second.FinalName != "front.png" {
		t.Errorf("second final name = %q", second.FinalName)
	}
	if len(res.UnmatchedRows) != 0 || len(res.UnmatchedFiles) != 0 {
		t.Errorf("unexpected residuals: %+v / %+v", res.UnmatchedRows, res.UnmatchedFiles)
	}
}

func TestRefStrategyClaimsMultipleImages(t *testing.T) {
	man := parseManifest(t, "sku,ref,image\nB-77,WIDGET7,widget-hero\n")
	files := imageFiles("PHOTO_WIDGET7_b.jpg", "PHOTO_WIDGET7_a.jpg", "PHOTO_OTHER.jpg")

	res := Match(man, files, config.DefaultSettings())
	if len(res.Matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(res.Matches))
	}

	main := res.Matches[0]
	if main.File.OriginalName != "PHOTO_WIDGET7_a.jpg" || main.ImageIndex != 0 || !main.IsMainImage {
		t.Errorf("main = %+v", main)
	}
	if main.Strategy != models.StrategyRef || main.Similarity != 0.85 {
		t.Errorf("main strategy = %+v", main)
	}
	if main.FinalName != "widget-hero.jpg" {
		t.Errorf("main final name = %q", main.FinalName)
	}

	extra := res.Matches[1]
	if extra.File.OriginalName != "PHOTO_WIDGET7_b.jpg" || extra.ImageIndex != 1 || extra.IsMainImage {
		t.Errorf("extra = %+v", extra)
	}
	if extra.FinalName != "widget-hero_1.jpg" {
		t.Errorf("extra final name = %q", extra.FinalName)
	}
	if main.TotalImagesForSKU != 2 || extra.TotalImagesForSKU != 2 {
		t.Errorf("totals = %d, %d", main.TotalImagesForSKU, extra.TotalImagesForSKU)
	}

	if len(res.UnmatchedFiles) != 1 || res.UnmatchedFiles[0].OriginalName != "PHOTO_OTHER.jpg" {
		t.Errorf("unmatched files = %+v", res.UnmatchedFiles)
	}
	if res.Stats.MultipleImagesProducts != 1 {
		t.Errorf("stats = %+v", res.Stats)
	}
}

func TestNormalizedBeatsFuzzyNeighbor(t *testing.T) {
	man := parseManifest(t, "sku,image\nC-9,IMG-RED-SHIRT-01\n")
	files := imageFiles("IMG_RED_SHIRT_01.jpg", "IMG-RED-SHIRT-02.jpg")

	res := Match(man, files, config.DefaultSettings())
	if len(res.Matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(res.Matches))
	}
	m := res.Matches[0]
	if m.File.OriginalName != "IMG_RED_SHIRT_01.jpg" || m.Strategy != models.StrategyNormalized || m.Similarity != 1.0 {
		t.Errorf("match = %+v", m)
	}
	if len(res.UnmatchedFiles) != 1 || res.UnmatchedFiles[0].OriginalName != "IMG-RED-SHIRT-02.jpg" {
		t.Errorf("unmatched = %+v", res.UnmatchedFiles)
	}
}

func TestTieBreakLexicographic(t *testing.T) {
	// Both files normalize to the row's image value; smallest original
	// name must win the primary slot.
	man := parseManifest(t, "sku,image\nD-1,shoe\n")
	files := imageFiles("shoe_.jpg", "shoe-.jpg")

	settings := config.DefaultSettings()
	settings.FileHandling.MultipleImages = false
	res := Match(man, files, settings)
	if len(res.Matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(res.Matches))
	}
	if res.Matches[0].File.OriginalName != "shoe-.jpg" {
		t.Errorf("tie-break picked %q", res.Matches[0].File.OriginalName)
	}
}

func TestOneFileOneRow(t *testing.T) {
	man := parseManifest(t, "sku,image\nA-1,front\nA-2,front\nA-3,front\n")
	files := imageFiles("front.jpg")

	settings := config.DefaultSettings()
	res := Match(man, files, settings)
	if len(res.Matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(res.Matches))
	}
	if len(res.UnmatchedRows) != 2 {
		t.Errorf("unmatched rows = %+v", res.UnmatchedRows)
	}

	seen := map[string]int{}
	for _, m := range res.Matches {
		seen[m.File.OriginalName]++
	}
	for name, n := range seen {
		if n > 1 {
			t.Errorf("file %q claimed %d times", name, n)
		}
	}
}

func TestPartialPrefixBothDirections(t *testing.T) {
	settings := config.DefaultSettings()
	settings.Strategies.Fuzzy = false

	// File name extends the row's prefix.
	man := parseManifest(t, "sku,image\nE-1,catalog-spring-collection-lamp\n")
	res := Match(man, imageFiles("catalogspringcollectionlampfinal.jpg"), settings)
	if len(res.Matches) != 1 || res.Matches[0].Strategy != models.StrategyPartial {
		t.Fatalf("forward partial: %+v", res.Matches)
	}
	if res.Matches[0].Similarity != 0.9 {
		t.Errorf("partial similarity = %v", res.Matches[0].Similarity)
	}

	// Row's image value extends the file's prefix.
	man = parseManifest(t, "sku,image\nE-2,catalog-spring-collection-lamp-oak-edition\n")
	res = Match(man, imageFiles("catalog-spring-collection-lamp-oak.jpg"), settings)
	if len(res.Matches) != 1 || res.Matches[0].Strategy != models.StrategyPartial {
		t.Fatalf("reverse partial: %+v", res.Matches)
	}
}

func TestFuzzyThresholdBoundary(t *testing.T) {
	man := parseManifest(t, "sku,image\nF-1,bluejumper\n")
	files := imageFiles("blu3jumper.jpg") // one substitution away

	settings := config.DefaultSettings()
	settings.Strategies.Partial = false
	res := Match(man, files, settings)
	if len(res.Matches) != 1 || res.Matches[0].Strategy != models.StrategyFuzzy {
		t.Fatalf("fuzzy match: %+v", res.Matches)
	}
	got := res.Matches[0].Similarity
	want := 1.0 - 1.0/10.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("similarity = %v, want %v", got, want)
	}

	// Threshold 1.0 collapses fuzzy to exact-normalized equality.
	settings.Thresholds.FuzzyThreshold = 1.0
	res = Match(man, files, settings)
	if len(res.Matches) != 0 {
		t.Errorf("threshold 1.0 should reject near matches: %+v", res.Matches)
	}
	if len(res.UnmatchedRows) != 1 || len(res.UnmatchedFiles) != 1 {
		t.Errorf("residuals = %+v / %+v", res.UnmatchedRows, res.UnmatchedFiles)
	}
}

func TestRefOnlyLegacyMode(t *testing.T) {
	man := parseManifest(t, "sku,ref,image\nG-1,TOK99,hero\n")
	files := imageFiles("hero.jpg", "shot_TOK99.jpg")

	settings := config.DefaultSettings()
	settings.Strategies = config.Strategies{Ref: true}
	res := Match(man, files, settings)
	if len(res.Matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(res.Matches))
	}
	if res.Matches[0].File.OriginalName != "shot_TOK99.jpg" || res.Matches[0].Strategy != models.StrategyRef {
		t.Errorf("match = %+v", res.Matches[0])
	}
}

func TestRefRequiresColumnAndValue(t *testing.T) {
	// No ref column: the ref strategy must not run even when enabled.
	man := parseManifest(t, "sku,image\nH-1,hero\n")
	files := imageFiles("shot_H-1.jpg")

	settings := config.DefaultSettings()
	settings.Strategies = config.Strategies{Ref: true}
	res := Match(man, files, settings)
	if len(res.Matches) != 0 {
		t.Errorf("matches without ref column: %+v", res.Matches)
	}

	// Ref column present but the row's value is empty.
	man = parseManifest(t, "sku,ref,image\nH-2,,hero\n")
	res = Match(man, files, settings)
	if len(res.Matches) != 0 {
		t.Errorf("matches with empty ref: %+v", res.Matches)
	}
}

func TestCaseSensitiveRef(t *testing.T) {
	man := parseManifest(t, "sku,ref,image\nI-1,Tok9,hero\n")
	files := imageFiles("shot_TOK9.jpg")

	settings := config.DefaultSettings()
	settings.Strategies = config.Strategies{Ref: true}
	settings.FileHandling.CaseSensitive = true
	if res := Match(man, files, settings); len(res.Matches) != 0 {
		t.Errorf("case-sensitive ref should not match: %+v", res.Matches)
	}

	settings.FileHandling.CaseSensitive = false
	if res := Match(man, files, settings); len(res.Matches) != 1 {
		t.Error("case-insensitive ref should match")
	}
}

func TestMultipleImagesDisabled(t *testing.T) {
	man := parseManifest(t, "sku,ref,image\nB-77,WIDGET7,widget-hero\n")
	files := imageFiles("PHOTO_WIDGET7_a.jpg", "PHOTO_WIDGET7_b.jpg")

	settings := config.DefaultSettings()
	settings.FileHandling.MultipleImages = false
	res := Match(man, files, settings)
	if len(res.Matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(res.Matches))
	}
	if len(res.UnmatchedFiles) != 1 {
		t.Errorf("unmatched = %+v", res.UnmatchedFiles)
	}
}

func TestEmptyInputs(t *testing.T) {
	man := parseManifest(t, "sku,image\n")
	res := Match(man, imageFiles("a.jpg"), config.DefaultSettings())
	if len(res.Matches) != 0 || len(res.UnmatchedFiles) != 1 {
		t.Errorf("empty manifest: %+v", res)
	}

	man = parseManifest(t, "sku,image\nA-1,front\nB-2,back\n")
	res = Match(man, nil, config.DefaultSettings())
	if len(res.Matches) != 0 {
		t.Errorf("no files should yield no matches: %+v", res.Matches)
	}
	if len(res.UnmatchedRows) != 2 {
		t.Errorf("unmatched rows = %+v", res.UnmatchedRows)
	}
}

func TestInvariantsAndDeterminism(t *testing.T) {
	csv := "sku,ref,image\n" +
		"A-1,AX7,alpha-front\n" +
		"A-1,AX7,alpha-front\n" +
		"B-2,,beta shot\n" +
		"C-3,CZ1,gamma\n"
	names := []string{
		"alpha_front.jpg", "alpha-front.jpg", "ALPHA-FRONT.png",
		"betashot.jpg", "IMG_CZ1_x.jpg", "IMG_CZ1_y.jpg", "stray.jpg",
	}

	run := func() *Result {
		return Match(parseManifest(t, csv), imageFiles(names...), config.DefaultSettings())
	}
	res := run()

	// Per-sku indices are contiguous starting at zero with exactly one
	// main image, and totals agree with the group size.
	bySKU := map[string][]models.Match{}
	for _, m := range res.Matches {
		bySKU[m.SKU] = append(bySKU[m.SKU], m)
	}
	for sku, group := range bySKU {
		mains := 0
		seen := map[int]bool{}
		for _, m := range group {
			if m.IsMainImage {
				mains++
				if m.ImageIndex != 0 {
					t.Errorf("sku %s: main image at index %d", sku, m.ImageIndex)
				}
			}
			if m.ImageIndex >= m.TotalImagesForSKU {
				t.Errorf("sku %s: index %d >= total %d", sku, m.ImageIndex, m.TotalImagesForSKU)
			}
			if m.TotalImagesForSKU != len(group) {
				t.Errorf("sku %s: total %d != group size %d", sku, m.TotalImagesForSKU, len(group))
			}
			seen[m.ImageIndex] = true
		}
		if mains != 1 {
			t.Errorf("sku %s: %d main images", sku, mains)
		}
		for i := 0; i < len(group); i++ {
			if !seen[i] {
				t.Errorf("sku %s: missing index %d", sku, i)
			}
		}
	}

	// No file claimed twice; residual accounting is complete.
	claimed := map[string]bool{}
	for _, m := range res.Matches {
		if claimed[m.File.OriginalName] {
			t.Errorf("file %q claimed twice", m.File.OriginalName)
		}
		claimed[m.File.OriginalName] = true
	}
	if len(res.Matches)+len(res.UnmatchedFiles) != len(names) {
		t.Errorf("file accounting: %d matched + %d unmatched != %d",
			len(res.Matches), len(res.UnmatchedFiles), len(names))
	}

	// Deterministic across repeated runs.
	for i := 0; i < 3; i++ {
		if again := run(); !reflect.DeepEqual(again.Matches, res.Matches) {
			t.Fatal("matcher is not deterministic")
		}
	}
}

func TestStats(t *testing.T) {
	csv := "sku,ref,image\nA-1,,front\nB-2,WID,hero\n"
	files := imageFiles("front.jpg", "x_WID_1.jpg", "x_WID_2.jpg")

	res := Match(parseManifest(t, csv), files, config.DefaultSettings())
	if res.Stats.ByStrategy[models.StrategyExact] != 1 {
		t.Errorf("exact count = %d", res.Stats.ByStrategy[models.StrategyExact])
	}
	if res.Stats.ByStrategy[models.StrategyRef] != 2 {
		t.Errorf("ref count = %d", res.Stats.ByStrategy[models.StrategyRef])
	}
	if res.Stats.UniqueProducts != 2 || res.Stats.MultipleImagesProducts != 1 {
		t.Errorf("stats = %+v", res.Stats)
	}
	want := (1.0 + 0.85 + 0.85) / 3.0
	if math.Abs(res.Stats.AverageSimilarity-want) > 1e-9 {
		t.Errorf("average similarity = %v, want %v", res.Stats.AverageSimilarity, want)
	}
}

func TestSimilarity(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"", "", 1},
		{"abc", "abc", 1},
		{"abc", "", 0},
		{"kitten", "sitting", 1 - 3.0/7.0},
		{"abcd", "abce", 0.75},
	}
	for _, tc := range cases {
		if got := Similarity(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
