package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sabaio/qaeval/internal/pattern"
	"github.com/sabaio/qaeval/internal/record"
	"github.com/sabaio/qaeval/internal/score"
)

func sampleResult() score.Result {
	return score.ScoreBinary([]record.Verdict{
		{Category: record.Named("zeta"), Gold: 1, Predicted: 1},
		{Category: record.Named("alpha"), Gold: 1, Predicted: 0},
		{Category: record.Named("zeta"), Gold: 0, Predicted: 1},
		{Category: record.Named("10"), Gold: "yes", Predicted: true},
		{Category: record.Named("alpha"), Gold: 1, Predicted: "maybe"},
		{Category: record.Named("2"), Gold: 0, Predicted: 0},
	})
}

func TestAssemble(t *testing.T) {
	s, err := Assemble(sampleResult())
	require.NoError(t, err)

	assert.Equal(t, score.ModeBinary, s.Mode)
	assert.InDelta(t, 0.5, s.OverallDeficiency, 1e-12)
	assert.Equal(t, []int{2, 3, 5}, s.GlobalFailures)

	names := make([]string, len(s.Categories))
	for i, c := range s.Categories {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"zeta", "alpha", "10", "2"}, names)

	alpha, ok := s.Category("alpha")
	require.True(t, ok)
	assert.Equal(t, 0.0, alpha.Accuracy)
	assert.Equal(t, []int{1, 2}, alpha.FailPositions)
	assert.Equal(t, 2, alpha.Pattern.LongestStreak)
	// total 2, third 0.67: position 1 is middle, position 2 is end.
	assert.Equal(t, pattern.RegionSpread, alpha.Pattern.Region)

	zeta, ok := s.Category("zeta")
	require.True(t, ok)
	assert.Equal(t, 0.5, zeta.Accuracy)
	assert.Equal(t, []int{2}, zeta.FailPositions)
	assert.Equal(t, pattern.RegionEnd, zeta.Pattern.Region)

	ten, ok := s.Category("10")
	require.True(t, ok)
	assert.Equal(t, 1.0, ten.Accuracy)
	assert.Equal(t, pattern.Empty(), ten.Pattern)

	// 6 records, third 2: {2} beginning, {3} middle, {5} end.
	assert.Equal(t, []int{1, 2}, s.GlobalPattern.Gaps)
	assert.Equal(t, pattern.RegionSpread, s.GlobalPattern.Region)
	require.NotNil(t, s.GlobalPattern.AvgGap)
	assert.InDelta(t, 1.5, *s.GlobalPattern.AvgGap, 1e-12)
}

func TestAssembleEmpty(t *testing.T) {
	s, err := Assemble(score.ScoreQA(nil))
	require.NoError(t, err)

	assert.Equal(t, 0.0, s.OverallDeficiency)
	assert.Empty(t, s.Categories)
	assert.Equal(t, []int{}, s.GlobalFailures)
	assert.Equal(t, pattern.Empty(), s.GlobalPattern)
}

func TestAssembleDoesNotAlias(t *testing.T) {
	res := sampleResult()
	s, err := Assemble(res)
	require.NoError(t, err)

	res.GlobalFailures[0] = 99
	res.Categories[1].FailPositions[0] = 99

	assert.Equal(t, 2, s.GlobalFailures[0])
	alpha, _ := s.Category("alpha")
	assert.Equal(t, 1, alpha.FailPositions[0])
}

func TestAssembleContractViolation(t *testing.T) {
	res := score.Result{
		Categories: []score.CategoryResult{
			{Category: record.Named("bad"), Total: 1, FailPositions: []int{3}},
		},
		GlobalFailures: []int{},
	}
	_, err := Assemble(res)
	require.Error(t, err)
	assert.ErrorIs(t, err, pattern.ErrContractViolation)
}

func TestSummaryJSONKeepsCategoryOrder(t *testing.T) {
	s, err := Assemble(sampleResult())
	require.NoError(t, err)

	b, err := json.Marshal(s)
	require.NoError(t, err)

	out := string(b)
	iz, ia, i10, i2 := strings.Index(out, `"zeta"`), strings.Index(out, `"alpha"`), strings.Index(out, `"10"`), strings.Index(out, `"2":`)
	assert.True(t, iz < ia && ia < i10 && i10 < i2, "category order not preserved: %s", out)

	var decoded struct {
		OverallDeficiency float64                    `json:"overall_deficiency"`
		Categories        map[string]json.RawMessage `json:"categories"`
		GlobalFailures    []int                      `json:"global_failures"`
		GlobalPattern     map[string]any             `json:"global_pattern"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Len(t, decoded.Categories, 4)
	assert.Contains(t, decoded.GlobalPattern, "avg_gap")
	assert.Contains(t, decoded.GlobalPattern, "longest_streak")

	var back Summary
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, s.Categories, back.Categories)
}

func TestSummaryJSONNullCategoryKeyIsUnique(t *testing.T) {
	s, err := Assemble(score.ScoreQA([]record.QA{
		{Category: record.NullCategory(), Answer: "a", Expected: "a"},
		{Category: record.Named("<null>"), Answer: "a", Expected: "b"},
	}))
	require.NoError(t, err)
	require.Len(t, s.Categories, 2)

	b, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded struct {
		Categories map[string]struct {
			Null  bool `json:"null"`
			Total int  `json:"total"`
		} `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Len(t, decoded.Categories, 2)
	assert.True(t, decoded.Categories["<null>#2"].Null)
	assert.False(t, decoded.Categories["<null>"].Null)

	var back Summary
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, s.Categories, back.Categories)
}

func TestSummaryYAMLKeepsCategoryOrder(t *testing.T) {
	s, err := Assemble(sampleResult())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, s, FormatYAML))

	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	root := doc.Content[0]

	var cats *yaml.Node
	for i := 0; i < len(root.Content); i += 2 {
		if root.Content[i].Value == "categories" {
			cats = root.Content[i+1]
		}
	}
	require.NotNil(t, cats)

	var keys []string
	for i := 0; i < len(cats.Content); i += 2 {
		keys = append(keys, cats.Content[i].Value)
	}
	assert.Equal(t, []string{"zeta", "alpha", "10", "2"}, keys)
	assert.Contains(t, buf.String(), "region: null")
}

func TestRenderText(t *testing.T) {
	s, err := Assemble(sampleResult())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, s, FormatText))

	out := buf.String()
	assert.Contains(t, out, "Evaluation report (binary)")
	assert.Contains(t, out, "0.5000")
	assert.Contains(t, out, "zeta")
	assert.Contains(t, out, "alpha")
	assert.Contains(t, out, "2, 3, 5")
	assert.Contains(t, out, "spread")
	assert.Contains(t, out, "Accuracy:")
	assert.Contains(t, out, "Timeline:")
	assert.Less(t, strings.Index(out, "zeta"), strings.Index(out, "alpha"))
}

func TestRenderTextEmpty(t *testing.T) {
	s, err := Assemble(score.ScoreQA(nil))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderText(&buf, s))
	assert.Contains(t, buf.String(), "No records evaluated.")
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("yaml")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}
