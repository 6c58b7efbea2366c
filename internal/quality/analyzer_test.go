package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truthlens/backend/internal/dataset"
)

func numericRows(values ...float64) []dataset.Row {
	rows := make([]dataset.Row, len(values))
	for i, v := range values {
		rows[i] = dataset.Row{"amount": dataset.Number(v)}
	}
	return rows
}

func TestAnalyzeEmpty(t *testing.T) {
	m := NewAnalyzer().Analyze(dataset.New("empty", nil, nil))
	assert.Equal(t, Metrics{}, m)
}

func TestAnalyzeCleanData(t *testing.T) {
	ds := dataset.New("clean", []string{"amount"}, numericRows(1, 2, 3, 4, 5, 6, 7, 8))
	m := NewAnalyzer().Analyze(ds)

	assert.Equal(t, Metrics{Score: 100, TotalRows: 8}, m)
}

func TestAnalyzeCountsMissing(t *testing.T) {
	rows := make([]dataset.Row, 10)
	for i := range rows {
		rows[i] = dataset.Row{"a": dataset.Number(float64(i)), "b": dataset.Text("x")}
	}
	rows[2]["a"] = dataset.Missing()
	rows[5]["b"] = dataset.Text("")
	delete(rows[7], "b")

	m := NewAnalyzer().Analyze(dataset.New("gaps", []string{"a", "b"}, rows))

	assert.Equal(t, 3, m.MissingValues)
	assert.Equal(t, 0, m.Outliers)
	// 3 of 20 cells missing: 100 - 0.15*200
	assert.Equal(t, 70, m.Score)
	assert.Equal(t, 10, m.TotalRows)
}

func TestAnalyzeCountsOutliers(t *testing.T) {
	values := make([]float64, 0, 21)
	for i := 0; i < 20; i++ {
		values = append(values, 10)
	}
	values = append(values, 1000)

	m := NewAnalyzer().Analyze(dataset.New("spike", []string{"amount"}, numericRows(values...)))

	assert.Equal(t, 1, m.Outliers)
	// 1 of 21 cells is an outlier: 100 - (1/21)*500 = 76.19
	assert.Equal(t, 76, m.Score)
}

func TestAnalyzeSkipsSmallAndConstantColumns(t *testing.T) {
	small := NewAnalyzer().Analyze(dataset.New("small", []string{"amount"}, numericRows(1, 1, 1, 1, 500)))
	assert.Zero(t, small.Outliers)

	constant := NewAnalyzer().Analyze(dataset.New("flat", []string{"amount"}, numericRows(4, 4, 4, 4, 4, 4, 4)))
	assert.Zero(t, constant.Outliers)
	assert.Equal(t, 100, constant.Score)
}

func TestAnalyzeIgnoresNonNumericText(t *testing.T) {
	rows := make([]dataset.Row, 12)
	for i := range rows {
		rows[i] = dataset.Row{"region": dataset.Text("north")}
	}
	m := NewAnalyzer().Analyze(dataset.New("text", []string{"region"}, rows))
	assert.Equal(t, Metrics{Score: 100, TotalRows: 12}, m)
}

func TestAnalyzeScoreFloorsAtZero(t *testing.T) {
	rows := make([]dataset.Row, 6)
	for i := range rows {
		rows[i] = dataset.Row{"a": dataset.Missing()}
	}
	m := NewAnalyzer().Analyze(dataset.New("void", []string{"a"}, rows))
	assert.Equal(t, 0, m.Score)
	assert.Equal(t, 6, m.MissingValues)
}

func TestAnalyzeMissingIsMonotonic(t *testing.T) {
	build := func(missing int) *dataset.Dataset {
		rows := make([]dataset.Row, 30)
		for i := range rows {
			v := dataset.Number(float64(i % 7))
			if i < missing {
				v = dataset.Missing()
			}
			rows[i] = dataset.Row{"a": v, "b": dataset.Number(float64(i))}
		}
		return dataset.New("mono", []string{"a", "b"}, rows)
	}

	a := NewAnalyzer()
	prev := a.Analyze(build(0)).Score
	for missing := 1; missing <= 30; missing++ {
		score := a.Analyze(build(missing)).Score
		require.LessOrEqual(t, score, prev, "missing=%d", missing)
		prev = score
	}
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	ds := dataset.New("same", []string{"amount"}, numericRows(1, 2, 3, 50, 4, 5, 6, 7))
	a := NewAnalyzer()
	assert.Equal(t, a.Analyze(ds), a.Analyze(ds))
}

func TestAnalyzeBlankTextReadsAsZero(t *testing.T) {
	rows := numericRows(100, 100, 100, 100, 100, 100, 100, 100, 100, 100,
		100, 100, 100, 100, 100, 100, 100, 100, 100, 100)
	rows = append(rows, dataset.Row{"amount": dataset.Text("  ")})

	m := NewAnalyzer().Analyze(dataset.New("blank", []string{"amount"}, rows))

	assert.Zero(t, m.MissingValues)
	assert.Equal(t, 1, m.Outliers)
	assert.Equal(t, 76, m.Score)
}
