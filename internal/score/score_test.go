package score

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabaio/qaeval/internal/record"
)

func qa(cat, answer, expected string) record.QA {
	return record.QA{Category: record.Named(cat), Answer: answer, Expected: expected}
}

func verdict(cat string, gold, predicted any) record.Verdict {
	return record.Verdict{Category: record.Named(cat), Gold: gold, Predicted: predicted}
}

func TestScoreQAEmpty(t *testing.T) {
	res := ScoreQA(nil)

	assert.Equal(t, 0.0, res.OverallDeficiency)
	assert.Empty(t, res.Categories)
	assert.Equal(t, []int{}, res.GlobalFailures)
	assert.Equal(t, 0, res.TotalRecords)
}

func TestScoreBinaryEmpty(t *testing.T) {
	res := ScoreBinary(nil)

	assert.Equal(t, 0.0, res.OverallDeficiency)
	assert.Empty(t, res.Categories)
	assert.Equal(t, []int{}, res.GlobalFailures)
}

func TestScoreQAPositions(t *testing.T) {
	records := []record.QA{
		qa("geo", "Paris", "paris"), // 1 geo#1 correct
		qa("math", "4", "5"),        // 2 math#1 fail
		qa("geo", "Rome", "Madrid"), // 3 geo#2 fail
		qa("geo", " Oslo ", "oslo"), // 4 geo#3 correct
		qa("math", "7", "7"),        // 5 math#2 correct
		qa("math", "nine", "ten"),   // 6 math#3 fail
	}

	res := ScoreQA(records)

	require.Len(t, res.Categories, 2)
	geo, math := res.Categories[0], res.Categories[1]

	assert.Equal(t, record.Named("geo"), geo.Category)
	assert.Equal(t, 3, geo.Total)
	assert.Equal(t, 2, geo.Correct)
	assert.Equal(t, []int{2}, geo.FailPositions)

	assert.Equal(t, record.Named("math"), math.Category)
	assert.Equal(t, 3, math.Total)
	assert.Equal(t, 1, math.Correct)
	assert.Equal(t, []int{1, 3}, math.FailPositions)

	assert.Equal(t, []int{2, 3, 6}, res.GlobalFailures)
	assert.Equal(t, 6, res.TotalRecords)
	assert.Equal(t, 3, res.TotalCorrect())

	require.Len(t, res.Outcomes, 6)
	assert.Equal(t, Outcome{Position: 3, CategoryPosition: 2, Category: "geo", Correct: false, Ratio: res.Outcomes[2].Ratio}, res.Outcomes[2])
}

func TestScoreQARatioAndVerdictDisagree(t *testing.T) {
	// Case differences pass the strict verdict.
	res := ScoreQA([]record.QA{qa("c", "Paris", "paris")})
	require.Len(t, res.Outcomes, 1)
	assert.True(t, res.Outcomes[0].Correct)

	// Punctuation fails it while the ratio stays high.
	res = ScoreQA([]record.QA{qa("c", "The Paris", "the paris.")})
	o := res.Outcomes[0]
	assert.False(t, o.Correct)
	require.NotNil(t, o.Ratio)
	assert.Greater(t, *o.Ratio, 0.7)
	assert.Equal(t, []int{1}, res.GlobalFailures)
	assert.InDelta(t, 1-*o.Ratio, res.OverallDeficiency, 1e-12)
}

func TestScoreQADeficiencyIsComplementOfMeanRatio(t *testing.T) {
	res := ScoreQA([]record.QA{
		qa("a", "abcd", "abce"), // 0.75
		qa("a", "same", "same"), // 1.0
		qa("a", "", ""),         // 1.0
		qa("a", "", "abc"),      // 0.0
	})
	assert.InDelta(t, 1-(0.75+1+1+0)/4, res.OverallDeficiency, 1e-12)
}

func TestScoreQAGroupsNullSeparately(t *testing.T) {
	res := ScoreQA([]record.QA{
		{Category: record.NullCategory(), Answer: "a", Expected: "a"},
		{Category: record.Named(""), Answer: "a", Expected: "b"},
		{Category: record.NullCategory(), Answer: "a", Expected: "b"},
	})

	require.Len(t, res.Categories, 2)
	assert.True(t, res.Categories[0].Category.Null)
	assert.Equal(t, 2, res.Categories[0].Total)
	assert.Equal(t, record.Named(""), res.Categories[1].Category)
}

func TestScoreQANullLabelAvoidsNamedCategory(t *testing.T) {
	res := ScoreQA([]record.QA{
		{Category: record.NullCategory(), Answer: "a", Expected: "a"},
		{Category: record.Named("<null>"), Answer: "a", Expected: "b"},
		{Category: record.Named("<null>#2"), Answer: "a", Expected: "a"},
		{Category: record.NullCategory(), Answer: "a", Expected: "b"},
	})

	require.Len(t, res.Categories, 3)
	assert.Equal(t, "<null>#3", res.Categories[0].Label)
	assert.Equal(t, "<null>", res.Categories[1].Label)
	assert.Equal(t, "<null>#2", res.Categories[2].Label)

	cats := make([]string, len(res.Outcomes))
	for i, o := range res.Outcomes {
		cats[i] = o.Category
	}
	assert.Equal(t, []string{"<null>#3", "<null>", "<null>#2", "<null>#3"}, cats)
}

func TestScoreQANullLabelDefault(t *testing.T) {
	res := ScoreQA([]record.QA{{Category: record.NullCategory()}})
	require.Len(t, res.Categories, 1)
	assert.Equal(t, "<null>", res.Categories[0].Label)
	assert.Equal(t, "<null>", res.Outcomes[0].Category)
}

func TestScoreBinary(t *testing.T) {
	res := ScoreBinary([]record.Verdict{
		verdict("spam", 1, "true"),                          // correct
		verdict("spam", 0, "yes"),                           // fail
		verdict("ham", "no", false),                         // correct
		verdict("spam", nil, nil),                           // fail: unknown never matches
		verdict("ham", "maybe", 1),                          // fail
		{Gold: 1, Predicted: 1},                             // uncategorized, correct
		{Category: record.Named(""), Gold: 1, Predicted: 0}, // uncategorized, fail
	})

	require.Len(t, res.Categories, 3)
	assert.Equal(t, "spam", res.Categories[0].Category.Name)
	assert.Equal(t, "ham", res.Categories[1].Category.Name)
	assert.Equal(t, record.Uncategorized, res.Categories[2].Category.Name)

	assert.Equal(t, []int{2, 3}, res.Categories[0].FailPositions)
	assert.Equal(t, []int{2}, res.Categories[1].FailPositions)
	assert.Equal(t, []int{2}, res.Categories[2].FailPositions)
	assert.Equal(t, []int{2, 4, 5, 7}, res.GlobalFailures)
	assert.InDelta(t, 1-3.0/7.0, res.OverallDeficiency, 1e-12)

	for _, o := range res.Outcomes {
		assert.Nil(t, o.Ratio)
	}
}

func TestScoreInvariants(t *testing.T) {
	records := []record.Verdict{
		verdict("b", 1, 1), verdict("a", 1, 0), verdict("c", 0, 0),
		verdict("a", 1, 1), verdict("b", "x", 1), verdict("b", 1, 0),
		verdict("10", 1, 1), verdict("2", 0, 1), verdict("a", 0, 1),
	}
	res := ScoreBinary(records)

	total, correct := 0, 0
	for _, c := range res.Categories {
		total += c.Total
		correct += c.Correct
		assert.Len(t, c.FailPositions, c.Total-c.Correct)
		prev := 0
		for _, p := range c.FailPositions {
			assert.Greater(t, p, prev)
			assert.LessOrEqual(t, p, c.Total)
			prev = p
		}
	}
	assert.Equal(t, len(records), total)
	assert.Equal(t, len(records), correct+len(res.GlobalFailures))

	var order []string
	for _, c := range res.Categories {
		order = append(order, c.Category.Name)
	}
	assert.Equal(t, []string{"b", "a", "c", "10", "2"}, order)
}

func TestEquivalent(t *testing.T) {
	assert.True(t, Equivalent("  Hello ", "hello"))
	assert.True(t, Equivalent("", "   "))
	assert.False(t, Equivalent("hello world", "hello  world"))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("binary")
	require.NoError(t, err)
	assert.Equal(t, ModeBinary, m)

	_, err = ParseMode("fuzzy")
	assert.Error(t, err)
}

type failingSource struct{ err error }

func (f failingSource) QARecords(context.Context) ([]record.QA, error) { return nil, f.err }

func TestRun(t *testing.T) {
	ctx := context.Background()

	res, err := Run(ctx, ModeQA, Sources{QA: record.QASlice{qa("a", "x", "x")}})
	require.NoError(t, err)
	assert.Equal(t, ModeQA, res.Mode)
	assert.Equal(t, 1, res.TotalRecords)

	res, err = Run(ctx, ModeBinary, Sources{Verdict: record.VerdictSlice{verdict("a", 1, 0)}})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, res.GlobalFailures)

	boom := errors.New("no such table")
	_, err = Run(ctx, ModeQA, Sources{QA: failingSource{err: boom}})
	assert.ErrorIs(t, err, boom)

	_, err = Run(ctx, ModeBinary, Sources{})
	assert.Error(t, err)
}
