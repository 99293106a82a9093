package games

import (
	"context"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-tutoring/internal/db"
)

func seeded() *Generator { return NewGenerator(rand.New(rand.NewPCG(1, 2))) }

func TestCatalog(t *testing.T) {
	c := Catalog()
	require.Len(t, c, 3)
	assert.Equal(t, GameTimesTable, c[0].ID)
	c[0].ID = "mutated"
	assert.Equal(t, GameTimesTable, Catalog()[0].ID, "callers get a copy")
	assert.True(t, Known(GameFractions))
	assert.False(t, Known("chess"))
}

func TestTimesTable_Bounds(t *testing.T) {
	tests := []struct {
		difficulty        string
		count, maxA, maxB int
	}{
		{"easy", 10, 5, 10},
		{"medium", 15, 10, 12},
		{"hard", 20, 12, 15},
		{"whatever", 20, 12, 15},
	}
	g := seeded()
	for _, tc := range tests {
		t.Run(tc.difficulty, func(t *testing.T) {
			qs := g.TimesTable(tc.difficulty)
			require.Len(t, qs, tc.count)
			for _, q := range qs {
				require.Len(t, q.Options, 4)
				assert.Contains(t, q.Options, q.Answer)
				seen := map[int]bool{}
				for _, o := range q.Options {
					assert.GreaterOrEqual(t, o, 0)
					assert.False(t, seen[o], "duplicate option %d in %s", o, q.ID)
					seen[o] = true
				}
				assert.LessOrEqual(t, q.Answer, tc.maxA*tc.maxB)
				assert.GreaterOrEqual(t, q.Answer, 1)
			}
		})
	}
}

func TestMathPuzzles(t *testing.T) {
	ps := seeded().MathPuzzles()
	require.Len(t, ps, 5)
	for _, p := range ps {
		assert.GreaterOrEqual(t, p.Target, 20)
		assert.LessOrEqual(t, p.Target, 100)
		require.Len(t, p.Numbers, 4)
		for _, n := range p.Numbers {
			assert.True(t, n >= 1 && n <= 9)
		}
	}
}

func TestFractions(t *testing.T) {
	qs := seeded().Fractions()
	require.Len(t, qs, 10)
	for _, q := range qs {
		assert.Contains(t, []string{">", "<", "="}, q.Answer)
	}
	assert.Equal(t, "=", compareFractions(1, 2, 3, 6))
	assert.Equal(t, ">", compareFractions(2, 3, 3, 5))
	assert.Equal(t, "<", compareFractions(1, 10, 1, 9))
}

func TestRecordResult(t *testing.T) {
	ctx := context.Background()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "games.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbh.Close() })
	s := NewStore(dbh)

	r, err := s.RecordResult(ctx, Result{GameName: GameTimesTable, StudentID: "s1", Score: 2, MaxScore: 3, TimeTaken: 40})
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, 66.7, r.Percentage)
	assert.Equal(t, "D", r.GradeLevel)

	zero, err := s.RecordResult(ctx, Result{GameName: GameFractions, StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, zero.Percentage)

	_, err = s.RecordResult(ctx, Result{GameName: "chess"})
	assert.ErrorIs(t, err, ErrUnknownGame)
}
