package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "capacity_(mw)", NormalizeName("  Capacity (MW) "))
	assert.Equal(t, "country/area", NormalizeName("Country/Area"))
	assert.Equal(t, "loan_amount_usd_m", NormalizeName("Loan  Amount USD M"))
}

func TestRowFloat(t *testing.T) {
	r := Row{"a": "1.5", "b": "", "c": "n/a word", "d": " 2 ", "e": "1,250.5"}

	v, ok := r.Float("a")
	assert.True(t, ok)
	assert.Equal(t, 1.5, v)

	_, ok = r.Float("b")
	assert.False(t, ok)

	_, ok = r.Float("c")
	assert.False(t, ok)

	v, ok = r.Float("d")
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)

	v, ok = r.Float("e")
	assert.True(t, ok)
	assert.Equal(t, 1250.5, v)
}

func TestSelect_MissingColumnNamesSource(t *testing.T) {
	tb := New("a", "b")
	tb.Append(Row{"a": "1", "b": "2"})

	_, err := tb.Select("widgets.csv", "a", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"missing"`)
	assert.Contains(t, err.Error(), "widgets.csv")
}

func TestLeftJoin_PreservesEveryLeftRow(t *testing.T) {
	left := New("country", "name")
	left.Append(Row{"country": "Kenya", "name": "p1"})
	left.Append(Row{"country": "Kenya", "name": "p2"})
	left.Append(Row{"country": "Chad", "name": "p3"})

	right := New("country", "score")
	right.Append(Row{"country": "kenya", "score": "31"})

	out, err := left.LeftJoinOn(right, "country", "left.csv", "right.csv")
	require.NoError(t, err)

	require.Equal(t, 3, out.Len())
	assert.Equal(t, "31", out.Rows[0]["score"]) // case-folded match
	assert.Equal(t, "31", out.Rows[1]["score"])
	assert.Equal(t, NA, out.Rows[2]["score"]) // unmatched keeps the row
}

func TestLeftJoin_DuplicateRightKeepsFirst(t *testing.T) {
	left := New("country")
	left.Append(Row{"country": "Kenya"})

	right := New("country", "score")
	right.Append(Row{"country": "Kenya", "score": "1"})
	right.Append(Row{"country": "Kenya", "score": "2"})

	out, err := left.LeftJoinOn(right, "country", "l", "r")
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, "1", out.Rows[0]["score"])
}

func TestGroupMeanBy_IgnoresMissing(t *testing.T) {
	tb := New("country", "loan")
	tb.Append(Row{"country": "A", "loan": "100"})
	tb.Append(Row{"country": "A", "loan": "200"})
	tb.Append(Row{"country": "A", "loan": ""})
	tb.Append(Row{"country": "B", "loan": ""})

	out, err := tb.GroupMeanBy("country", "loan", "loans.csv")
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())

	v, ok := out.Rows[0].Float("loan")
	assert.True(t, ok)
	assert.Equal(t, 150.0, v)

	assert.True(t, out.Rows[1].IsNA("loan")) // all-missing aggregates to NA
}

func TestSortByFloatDesc_StableTies(t *testing.T) {
	tb := New("name", "score")
	tb.Append(Row{"name": "a", "score": "0.5"})
	tb.Append(Row{"name": "b", "score": "0.9"})
	tb.Append(Row{"name": "c", "score": "0.5"})
	tb.Append(Row{"name": "d", "score": ""})

	tb.SortByFloatDesc("score")

	assert.Equal(t, "b", tb.Rows[0]["name"])
	assert.Equal(t, "a", tb.Rows[1]["name"]) // tie keeps original order
	assert.Equal(t, "c", tb.Rows[2]["name"])
	assert.Equal(t, "d", tb.Rows[3]["name"]) // missing sorts last

	for i := 0; i+1 < tb.Len(); i++ {
		a, aok := tb.Rows[i].Float("score")
		b, bok := tb.Rows[i+1].Float("score")
		if aok && bok {
			assert.GreaterOrEqual(t, a, b)
		}
	}
}

func TestRename(t *testing.T) {
	tb := New("status", "country/area")
	tb.Append(Row{"status": "operating", "country/area": "Kenya"})

	tb.Rename(map[string]string{"country/area": "country", "absent": "x"})

	assert.Equal(t, []string{"status", "country"}, tb.Columns)
	assert.Equal(t, "Kenya", tb.Rows[0]["country"])
	_, exists := tb.Rows[0]["country/area"]
	assert.False(t, exists)
}
