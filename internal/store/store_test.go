package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabaio/qaeval/internal/record"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newQARepo(t *testing.T, s *Store) *QARepo {
	t.Helper()
	repo, err := s.QA(DefaultQATable)
	require.NoError(t, err)
	require.NoError(t, repo.Ensure(context.Background()))
	return repo
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestInvalidTableName(t *testing.T) {
	s := openTestStore(t)
	for _, name := range []string{"", "1abc", "qa; DROP TABLE x", "a-b"} {
		_, err := s.QA(name)
		assert.Error(t, err, name)
		_, err = s.Verdicts(name)
		assert.Error(t, err, name)
	}
}

func TestMissingTable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	qa, err := s.QA("nope")
	require.NoError(t, err)
	_, err = qa.QARecords(ctx)
	assert.True(t, errors.Is(err, ErrTableNotFound))

	v, err := s.Verdicts("nope")
	require.NoError(t, err)
	_, err = v.VerdictRecords(ctx)
	assert.True(t, errors.Is(err, ErrTableNotFound))
}

func TestQAAddAndRecords(t *testing.T) {
	s := openTestStore(t)
	repo := newQARepo(t, s)
	ctx := context.Background()

	id, err := repo.Add(ctx, QAEntry{Category: record.Named("geo"), Question: "capital?", Answer: "Paris", Expected: "Paris"})
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	err = repo.AddBatch(ctx, []QAEntry{
		{Category: record.Named("math"), Answer: "4", Expected: "4"},
		{Category: record.NullCategory(), Answer: "", Expected: "x"},
	})
	require.NoError(t, err)

	recs, err := repo.QARecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, []record.QA{
		{Category: record.Named("geo"), Answer: "Paris", Expected: "Paris"},
		{Category: record.Named("math"), Answer: "4", Expected: "4"},
		{Category: record.NullCategory(), Answer: "", Expected: "x"},
	}, recs)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestQADeleteAndCompact(t *testing.T) {
	s := openTestStore(t)
	repo := newQARepo(t, s)
	ctx := context.Background()

	var entries []QAEntry
	for _, a := range []string{"a", "b", "c", "d"} {
		entries = append(entries, QAEntry{Category: record.Named("x"), Answer: a, Expected: a})
	}
	require.NoError(t, repo.AddBatch(ctx, entries))

	n, err := repo.Delete(ctx, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 1, list[0].ID)
	assert.Equal(t, 4, list[1].ID)

	require.NoError(t, repo.Compact(ctx))
	list, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 1, list[0].ID)
	assert.Equal(t, "a", list[0].Answer)
	assert.Equal(t, 2, list[1].ID)
	assert.Equal(t, "d", list[1].Answer)

	id, err := repo.Add(ctx, QAEntry{Answer: "e", Expected: "e"})
	require.NoError(t, err)
	assert.Equal(t, 3, id)
}

func TestQADeleteAllResetsIDs(t *testing.T) {
	s := openTestStore(t)
	repo := newQARepo(t, s)
	ctx := context.Background()

	require.NoError(t, repo.AddBatch(ctx, []QAEntry{{Answer: "a"}, {Answer: "b"}}))
	require.NoError(t, repo.DeleteAll(ctx))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	id, err := repo.Add(ctx, QAEntry{Answer: "c"})
	require.NoError(t, err)
	assert.Equal(t, 1, id)
}

func TestQACategories(t *testing.T) {
	s := openTestStore(t)
	repo := newQARepo(t, s)
	ctx := context.Background()

	require.NoError(t, repo.AddBatch(ctx, []QAEntry{
		{Category: record.Named("math")},
		{Category: record.NullCategory()},
		{Category: record.Named("geo")},
		{Category: record.Named("")},
		{Category: record.Named("math")},
	}))

	cats, err := repo.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"math", "geo"}, cats)

	unc, err := repo.Uncategorized(ctx)
	require.NoError(t, err)
	require.Len(t, unc, 2)
	assert.Equal(t, 2, unc[0].ID)
	assert.Equal(t, 4, unc[1].ID)

	require.NoError(t, repo.SetCategory(ctx, 2, "geo"))
	unc, err = repo.Uncategorized(ctx)
	require.NoError(t, err)
	require.Len(t, unc, 1)

	assert.Error(t, repo.SetCategory(ctx, 99, "geo"))
}

func TestEnsureAddsCategoryColumn(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.DB().Exec(`CREATE TABLE legacy (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		question TEXT,
		answer TEXT,
		expected_answer TEXT
	)`)
	require.NoError(t, err)
	_, err = s.DB().Exec(`INSERT INTO legacy (question, answer, expected_answer) VALUES ('q', 'a', 'a')`)
	require.NoError(t, err)

	repo, err := s.QA("legacy")
	require.NoError(t, err)
	require.NoError(t, repo.Ensure(ctx))

	recs, err := repo.QARecords(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Category.Null)
}

func TestVerdictRecordsPreserveRawValues(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	repo, err := s.Verdicts(DefaultVerdictTable)
	require.NoError(t, err)
	require.NoError(t, repo.Ensure(ctx))

	require.NoError(t, repo.AddBatch(ctx, []VerdictEntry{
		{Category: record.Named("spam"), Gold: int64(1), Predicted: int64(1)},
		{Category: record.NullCategory(), Gold: "0", Predicted: 0.7},
		{Category: record.Named("ham"), Gold: nil, Predicted: int64(0)},
	}))

	recs, err := repo.VerdictRecords(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, record.Named("spam"), recs[0].Category)
	assert.Equal(t, int64(1), recs[0].Gold)
	assert.True(t, recs[1].Category.Null)
	assert.Equal(t, "0", recs[1].Gold)
	assert.Equal(t, 0.7, recs[1].Predicted)
	assert.Nil(t, recs[2].Gold)

	require.NoError(t, repo.DeleteAll(ctx))
	recs, err = repo.VerdictRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRunSaveListGet(t *testing.T) {
	s := openTestStore(t)
	repo := s.Runs()
	ctx := context.Background()

	got, err := repo.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	base := time.Now().UTC().Truncate(time.Second)
	first := &Run{Mode: "qa", Source: "qa_table", CreatedAt: base, OverallDeficiency: 0.25, Summary: json.RawMessage(`{"mode":"qa"}`)}
	second := &Run{Mode: "binary", Source: "verdict_table", CreatedAt: base.Add(time.Minute), OverallDeficiency: 0.5, Summary: json.RawMessage(`{"mode":"binary"}`)}
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))
	assert.NotEmpty(t, first.ID)

	runs, err := repo.List(ctx, QueryOpts{})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)

	runs, err = repo.List(ctx, QueryOpts{Mode: "qa"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, first.ID, runs[0].ID)

	runs, err = repo.List(ctx, QueryOpts{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	got, err = repo.Get(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "qa", got.Mode)
	assert.InDelta(t, 0.25, got.OverallDeficiency, 1e-9)
	assert.JSONEq(t, `{"mode":"qa"}`, string(got.Summary))
	assert.True(t, got.CreatedAt.Equal(base))
}

func TestDefaultDBPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("QAEVAL_DB", filepath.Join(dir, "sub", "x.db"))
	p, err := DefaultDBPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sub", "x.db"), p)

	t.Setenv("QAEVAL_DB", "")
	t.Setenv("XDG_DATA_HOME", dir)
	p, err = DefaultDBPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "qaeval", "qaeval.db"), p)
}
