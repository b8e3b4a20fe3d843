package reports

import "math"

// Bucket is one bin of an ordered boundary table. Max is inclusive; a value
// belongs to the first bucket whose Max it does not exceed.
type Bucket struct {
	Label string
	Max   float64
}

type BucketTable []Bucket

func (t BucketTable) Label(v float64) string {
	for _, b := range t {
		if v <= b.Max {
			return b.Label
		}
	}
	return t[len(t)-1].Label
}

func (t BucketTable) Labels() []string {
	labels := make([]string, len(t))
	for i, b := range t {
		labels[i] = b.Label
	}
	return labels
}

var (
	InstallmentBuckets = BucketTable{
		{"1", 1},
		{"2-3", 3},
		{"4-6", 6},
		{"7-12", 12},
		{"13+", math.Inf(1)},
	}

	CartSizeBuckets = BucketTable{
		{"1", 1},
		{"2-3", 3},
		{"4-5", 5},
		{"6-10", 10},
		{"11+", math.Inf(1)},
	}

	CartValueBuckets = BucketTable{
		{"0-50", 50},
		{"51-100", 100},
		{"101-200", 200},
		{"201-500", 500},
		{"501-1000", 1000},
		{"1000+", math.Inf(1)},
	}

	CohortBuckets = BucketTable{
		{"One-time", 1},
		{"Occasional", 3},
		{"Regular", 10},
		{"Loyal", math.Inf(1)},
	}
)

// HourRange is an inclusive range of hours that may wrap past midnight.
type HourRange struct {
	Label string
	From  int
	To    int
}

func (r HourRange) Contains(hour int) bool {
	if r.From <= r.To {
		return hour >= r.From && hour <= r.To
	}
	return hour >= r.From || hour <= r.To
}

var DayParts = []HourRange{
	{"Morning", 6, 11},
	{"Afternoon", 12, 17},
	{"Evening", 18, 22},
	{"Night", 23, 5},
}

func DayPart(hour int) string {
	for _, r := range DayParts {
		if r.Contains(hour) {
			return r.Label
		}
	}
	return DayParts[len(DayParts)-1].Label
}

func dayPartLabels() []string {
	labels := make([]string, len(DayParts))
	for i, r := range DayParts {
		labels[i] = r.Label
	}
	return labels
}
