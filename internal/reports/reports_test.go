package reports

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"cart-analytics/internal/models"
)

func strPtr(s string) *string { return &s }

func fact(id string, status models.CartStatus, value float64) models.OrderFact {
	ts := time.Date(2018, 3, 14, 10, 0, 0, 0, time.UTC)
	f := models.OrderFact{
		OrderID:             id,
		PurchaseTimestamp:   ts,
		OrderYear:           2018,
		OrderMonth:          3,
		OrderQuarter:        1,
		OrderDayOfWeek:      int(ts.Weekday()),
		OrderDayName:        ts.Weekday().String(),
		OrderHour:           ts.Hour(),
		DayType:             "Weekday",
		CartStatus:          status,
		CartValue:           value,
		PaymentInstallments: 1,
	}
	if value > 0 {
		f.CartSize = 1
		f.TotalPaymentValue = value
	}
	switch status {
	case models.CartAbandoned:
		f.IsAbandoned = 1
	case models.CartCompleted:
		f.IsCompleted = 1
	}
	return f
}

func withCategory(f models.OrderFact, cat string) models.OrderFact {
	f.PrimaryCategory = strPtr(cat)
	f.PrimaryCategoryEnglish = strPtr(cat)
	return f
}

func lowThresholds() Thresholds {
	return Thresholds{RecoveryShare: 0.10}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.125, 0.13},
		{-0.125, -0.13},
		{2.675, 2.68},
		{1.004, 1.0},
		{0, 0},
	}
	for _, tt := range tests {
		if got := round2(tt.in); got != tt.want {
			t.Errorf("round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if !math.IsNaN(round2(math.NaN())) {
		t.Error("round2(NaN) should stay NaN")
	}
}

func TestPct(t *testing.T) {
	if got := pct(1, 2); got != 50 {
		t.Errorf("pct(1, 2) = %v, want 50", got)
	}
	if got := pct(1, 3); got != 33.33 {
		t.Errorf("pct(1, 3) = %v, want 33.33", got)
	}
	if got := pct(2, 3); got != 66.67 {
		t.Errorf("pct(2, 3) = %v, want 66.67", got)
	}
	if got := pct(5, 0); got != 0 {
		t.Errorf("pct(5, 0) = %v, want 0", got)
	}
}

func TestPercentileCont(t *testing.T) {
	values := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	if got := percentileCont(values, 0.9); math.Abs(got-91) > 1e-9 {
		t.Errorf("p90 = %v, want 91", got)
	}
	if got := percentileCont([]float64{5}, 0.9); got != 5 {
		t.Errorf("single value p90 = %v, want 5", got)
	}
	if got := percentileCont(nil, 0.9); got != 0 {
		t.Errorf("empty p90 = %v, want 0", got)
	}
}

func TestBucketEdges(t *testing.T) {
	tests := []struct {
		table BucketTable
		in    float64
		want  string
	}{
		{InstallmentBuckets, 1, "1"},
		{InstallmentBuckets, 3, "2-3"},
		{InstallmentBuckets, 4, "4-6"},
		{InstallmentBuckets, 12, "7-12"},
		{InstallmentBuckets, 13, "13+"},
		{CartSizeBuckets, 5, "4-5"},
		{CartSizeBuckets, 6, "6-10"},
		{CartSizeBuckets, 11, "11+"},
		{CartValueBuckets, 50, "0-50"},
		{CartValueBuckets, 50.01, "51-100"},
		{CartValueBuckets, 1000, "501-1000"},
		{CartValueBuckets, 1000.01, "1000+"},
		{CohortBuckets, 1, "One-time"},
		{CohortBuckets, 2, "Occasional"},
		{CohortBuckets, 10, "Regular"},
		{CohortBuckets, 11, "Loyal"},
	}
	for _, tt := range tests {
		if got := tt.table.Label(tt.in); got != tt.want {
			t.Errorf("Label(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDayPart(t *testing.T) {
	tests := map[int]string{
		0: "Night", 5: "Night", 6: "Morning", 11: "Morning", 12: "Afternoon",
		17: "Afternoon", 18: "Evening", 22: "Evening", 23: "Night",
	}
	for hour, want := range tests {
		if got := DayPart(hour); got != want {
			t.Errorf("DayPart(%d) = %q, want %q", hour, got, want)
		}
	}
}

func TestTerminalFilter(t *testing.T) {
	facts := []models.OrderFact{
		fact("o1", models.CartCompleted, 30),
		fact("o2", models.CartAbandoned, 50),
		fact("o3", models.CartPending, 0),
	}
	e := NewEngine(facts, lowThresholds())

	rows := e.Payments()
	if len(rows) != 1 {
		t.Fatalf("expected 1 payment row, got %d", len(rows))
	}
	got := rows[0]
	if got.PaymentType != "Unknown" {
		t.Errorf("PaymentType = %q, want Unknown", got.PaymentType)
	}
	if got.TotalOrders != 2 || got.AbandonedOrders != 1 || got.AbandonmentRate != 50.00 {
		t.Errorf("got %+v, want 2 orders, 1 abandoned, rate 50", got)
	}
}

func TestCategoriesMinSupport(t *testing.T) {
	var facts []models.OrderFact
	for i := 0; i < 4; i++ {
		status := models.CartCompleted
		if i == 0 {
			status = models.CartAbandoned
		}
		facts = append(facts, withCategory(fact(fmt.Sprintf("a%d", i), status, 100), "toys"))
	}
	facts = append(facts, withCategory(fact("b0", models.CartAbandoned, 10), "books"))

	th := lowThresholds()
	th.CategoryMinSupport = 2
	rows := NewEngine(facts, th).Categories()

	if len(rows) != 1 {
		t.Fatalf("expected only the supported category, got %+v", rows)
	}
	want := models.CategoryRow{
		Category:        "toys",
		TotalOrders:     4,
		AbandonedOrders: 1,
		AbandonmentRate: 25,
		AvgCartValue:    100,
		AvgCartSize:     1,
		AbandonedValue:  100,
	}
	if diff := cmp.Diff(want, rows[0]); diff != "" {
		t.Errorf("category row mismatch (-want +got):\n%s", diff)
	}
	for _, r := range rows {
		if r.AbandonmentRate < 0 || r.AbandonmentRate > 100 {
			t.Errorf("rate out of range: %v", r.AbandonmentRate)
		}
	}
}

func TestRateOrdering(t *testing.T) {
	var facts []models.OrderFact
	add := func(cat string, abandoned, completed int) {
		for i := 0; i < abandoned; i++ {
			facts = append(facts, withCategory(fact(cat, models.CartAbandoned, 10), cat))
		}
		for i := 0; i < completed; i++ {
			facts = append(facts, withCategory(fact(cat, models.CartCompleted, 10), cat))
		}
	}
	add("zeta", 1, 1)
	add("alpha", 1, 1)
	add("big", 2, 2)
	add("worst", 3, 0)

	rows := NewEngine(facts, lowThresholds()).Categories()
	var got []string
	for _, r := range rows {
		got = append(got, r.Category)
	}
	want := []string{"worst", "big", "alpha", "zeta"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ordering mismatch (-want +got):\n%s", diff)
	}
}

func TestBucketBreakdowns(t *testing.T) {
	a := fact("a", models.CartAbandoned, 40)
	a.PaymentInstallments = 10
	a.CartSize = 7
	b := fact("b", models.CartCompleted, 1500)
	b.CartSize = 2
	empty := fact("c", models.CartAbandoned, 0)

	e := NewEngine([]models.OrderFact{a, b, empty}, lowThresholds())

	sizes := e.CartSizes()
	if len(sizes) != 2 || sizes[0].Bucket != "2-3" || sizes[1].Bucket != "6-10" {
		t.Errorf("cart sizes = %+v", sizes)
	}
	values := e.CartValues()
	if len(values) != 2 || values[0].Bucket != "0-50" || values[1].Bucket != "1000+" {
		t.Errorf("cart values = %+v", values)
	}
	inst := e.Installments()
	if len(inst) != 2 || inst[0].Bucket != "1" || inst[0].TotalOrders != 2 || inst[1].Bucket != "7-12" {
		t.Errorf("installments = %+v", inst)
	}
}

func TestTemporalBreakdowns(t *testing.T) {
	jan := fact("a", models.CartAbandoned, 10)
	jan.OrderYear, jan.OrderMonth, jan.OrderQuarter = 2017, 1, 1
	jan.OrderDayOfWeek = 0
	jan.OrderHour = 23
	jun := fact("b", models.CartCompleted, 10)
	jun.OrderYear, jun.OrderMonth, jun.OrderQuarter = 2017, 6, 2
	jun.OrderDayOfWeek = 1
	jun.OrderHour = 7

	e := NewEngine([]models.OrderFact{jun, jan}, lowThresholds())

	monthly := e.Monthly()
	if len(monthly) != 2 || monthly[0].Period != "2017-01" || monthly[1].Period != "2017-06" {
		t.Errorf("monthly = %+v", monthly)
	}
	if monthly[0].Year != 2017 || monthly[0].Month != 1 {
		t.Errorf("monthly[0] = %+v", monthly[0])
	}
	quarterly := e.Quarterly()
	if len(quarterly) != 2 || quarterly[0].Period != "2017-Q1" || quarterly[1].Quarter != 2 {
		t.Errorf("quarterly = %+v", quarterly)
	}
	if quarterly[0].Year != 2017 || quarterly[0].Quarter != 1 || quarterly[0].Month != 0 {
		t.Errorf("quarterly[0] = %+v", quarterly[0])
	}
	weekdays := e.Weekdays()
	if len(weekdays) != 2 || weekdays[0].DayName != "Monday" || weekdays[1].DayName != "Sunday" {
		t.Errorf("weekdays = %+v", weekdays)
	}
	hours := e.HourBuckets()
	if len(hours) != 2 || hours[0].Bucket != "Morning" || hours[1].Bucket != "Night" {
		t.Errorf("hour buckets = %+v", hours)
	}
}

func TestStateRecovery(t *testing.T) {
	var facts []models.OrderFact
	add := func(state string, abandoned, completed int) {
		for i := 0; i < abandoned; i++ {
			f := fact(state, models.CartAbandoned, 100)
			f.CustomerState = strPtr(state)
			facts = append(facts, f)
		}
		for i := 0; i < completed; i++ {
			f := fact(state, models.CartCompleted, 100)
			f.CustomerState = strPtr(state)
			facts = append(facts, f)
		}
	}
	add("SP", 3, 1)
	add("RJ", 1, 3)
	add("MG", 0, 4)

	rows := NewEngine(facts, lowThresholds()).StateRecovery()
	if len(rows) != 2 {
		t.Fatalf("expected zero-rate state to be skipped, got %+v", rows)
	}
	// global 4/12; SP 300 * (1 - (1/3)/(3/4)) = 166.67
	if rows[0].State != "SP" || rows[0].PotentialRecovery != 166.67 {
		t.Errorf("rows[0] = %+v", rows[0])
	}
	// RJ 100 * (1 - (1/3)/(1/4)) = -33.33
	if rows[1].State != "RJ" || rows[1].PotentialRecovery != -33.33 {
		t.Errorf("rows[1] = %+v", rows[1])
	}
}

func TestCohorts(t *testing.T) {
	at := func(f models.OrderFact, customer string, day int) models.OrderFact {
		f.CustomerUniqueID = strPtr(customer)
		f.PurchaseTimestamp = time.Date(2018, 1, day, 12, 0, 0, 0, time.UTC)
		return f
	}
	facts := []models.OrderFact{
		at(fact("1", models.CartAbandoned, 10), "solo", 1),
		at(fact("2", models.CartAbandoned, 10), "pair", 1),
		at(fact("3", models.CartCompleted, 10), "pair", 11),
		at(fact("4", models.CartCompleted, 10), "trio", 1),
		at(fact("5", models.CartCompleted, 10), "trio", 2),
	}

	rows := NewEngine(facts, lowThresholds()).Cohorts()
	want := []models.CohortRow{
		{Segment: "One-time", Customers: 1, TotalOrders: 1, AvgAbandonmentRate: 100, AvgLifespanDays: 0},
		{Segment: "Occasional", Customers: 2, TotalOrders: 4, AvgAbandonmentRate: 25, AvgLifespanDays: 5.5},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("cohorts mismatch (-want +got):\n%s", diff)
	}
}

func TestHighValueAtRisk(t *testing.T) {
	var facts []models.OrderFact
	for i := 1; i <= 10; i++ {
		facts = append(facts, withCategory(fact(fmt.Sprint(i), models.CartAbandoned, float64(i*10)), fmt.Sprint("c", i%3)))
	}
	facts = append(facts, fact("done", models.CartCompleted, 5000))

	rows := NewEngine(facts, lowThresholds()).HighValueAtRisk()
	if len(rows) != 2 {
		t.Fatalf("expected two segments, got %+v", rows)
	}
	top, bottom := rows[0], rows[1]
	if top.Segment != "Top 10%" || top.Orders != 1 || top.TotalValue != 100 || top.Threshold != 91 {
		t.Errorf("top = %+v", top)
	}
	if bottom.Segment != "Bottom 90%" || bottom.Orders != 9 || bottom.DistinctCategories != 3 {
		t.Errorf("bottom = %+v", bottom)
	}

	if rows := NewEngine(nil, lowThresholds()).HighValueAtRisk(); rows == nil || len(rows) != 0 {
		t.Errorf("empty input should give empty non-nil rows, got %#v", rows)
	}
}

func TestFrictionFactors(t *testing.T) {
	f := fact("a", models.CartAbandoned, 10)
	f.UniqueSellers = 2
	f.PaymentInstallments = 7

	rows := NewEngine([]models.OrderFact{f, fact("b", models.CartCompleted, 10)}, lowThresholds()).FrictionFactors()
	if len(rows) != 4 {
		t.Fatalf("expected four factors, got %d", len(rows))
	}
	if rows[0].AffectedOrders != 1 || rows[0].AbandonmentRate != 100 {
		t.Errorf("multiple sellers = %+v", rows[0])
	}
	if rows[1].AffectedOrders != 0 || rows[1].AbandonmentRate != 0 {
		t.Errorf("multiple categories = %+v", rows[1])
	}
	if rows[2].AffectedOrders != 1 {
		t.Errorf("installments = %+v", rows[2])
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		rate  float64
		value float64
		want  models.Priority
	}{
		{30, 6000, models.PriorityHigh},
		{30, 4000, models.PriorityMedium},
		{25, 6000, models.PriorityMedium},
		{21, 100, models.PriorityMedium},
		{10, 3500, models.PriorityMedium},
		{20, 3000, models.PriorityLow},
	}
	for _, tt := range tests {
		if got := Classify(tt.rate, tt.value); got != tt.want {
			t.Errorf("Classify(%v, %v) = %s, want %s", tt.rate, tt.value, got, tt.want)
		}
	}
}

func TestScore(t *testing.T) {
	// 0.4*30 + 0.3*4 + 0.3*2
	if got := Score(30, 4000, 200); got != 13.8 {
		t.Errorf("Score = %v, want 13.8", got)
	}
}

func TestPriorities(t *testing.T) {
	var facts []models.OrderFact
	for i := 0; i < 3; i++ {
		facts = append(facts, withCategory(fact("x", models.CartAbandoned, 3000), "furniture"))
	}
	facts = append(facts, withCategory(fact("x", models.CartCompleted, 3000), "furniture"))
	facts = append(facts, withCategory(fact("y", models.CartCompleted, 10), "pens"))

	th := lowThresholds()
	th.PriorityMinSupport = 1
	rows := NewEngine(facts, th).Priorities()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %+v", rows)
	}
	if rows[0].Category != "furniture" || rows[0].Priority != models.PriorityHigh {
		t.Errorf("rows[0] = %+v", rows[0])
	}
	if rows[1].Priority != models.PriorityLow {
		t.Errorf("rows[1] = %+v", rows[1])
	}
}

func TestFunnelMonotone(t *testing.T) {
	approved := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	completed := fact("a", models.CartCompleted, 10)
	completed.ApprovedAt = &approved
	pending := fact("b", models.CartPending, 10)
	pending.ApprovedAt = &approved
	// approved but never paid must not inflate the later stage
	unpaid := fact("c", models.CartPending, 0)
	unpaid.ApprovedAt = &approved

	facts := []models.OrderFact{
		completed, pending, unpaid,
		fact("d", models.CartAbandoned, 10),
		fact("e", models.CartOther, 10),
	}
	rows := NewEngine(facts, lowThresholds()).Funnel()

	want := []int{4, 3, 2, 1}
	for i, r := range rows {
		if r.Orders != want[i] {
			t.Errorf("stage %d (%s) = %d, want %d", r.Step, r.Stage, r.Orders, want[i])
		}
		if i > 0 && r.Orders > rows[i-1].Orders {
			t.Errorf("stage %d increases", r.Step)
		}
	}
	if rows[0].ConversionRate != 100 || rows[3].ConversionRate != 25 {
		t.Errorf("conversion = %v / %v", rows[0].ConversionRate, rows[3].ConversionRate)
	}
}

func TestFunnelCompletedNeedsEarlierStages(t *testing.T) {
	approved := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	full := fact("a", models.CartCompleted, 10)
	full.ApprovedAt = &approved
	// completed orders missing an approval time stop at Payment Attempted
	noApproval := fact("b", models.CartCompleted, 10)

	rows := NewEngine([]models.OrderFact{full, noApproval}, lowThresholds()).Funnel()

	want := []int{2, 2, 1, 1}
	for i, r := range rows {
		if r.Orders != want[i] {
			t.Errorf("stage %d (%s) = %d, want %d", r.Step, r.Stage, r.Orders, want[i])
		}
	}
}

func TestSummary(t *testing.T) {
	facts := []models.OrderFact{
		fact("o1", models.CartCompleted, 30),
		fact("o2", models.CartAbandoned, 50),
		fact("o3", models.CartPending, 0),
		fact("o4", models.CartOther, 20),
	}
	got := NewEngine(facts, lowThresholds()).Summary()
	want := models.Summary{
		TotalOrders:       4,
		AbandonedOrders:   1,
		CompletedOrders:   1,
		PendingOrders:     1,
		OtherOrders:       1,
		AbandonmentRate:   50,
		TotalRevenue:      30,
		LostRevenue:       50,
		AvgCartValue:      25,
		RecoveryShare:     0.10,
		PotentialRecovery: 5,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestDataQuality(t *testing.T) {
	a := fact("a", models.CartCompleted, 10)
	a.CustomerState = strPtr("SP")
	b := fact("b", models.CartCompleted, 10)
	b.PurchaseTimestamp = a.PurchaseTimestamp.Add(48 * time.Hour)

	dq := NewEngine([]models.OrderFact{a, b}, lowThresholds()).DataQuality()
	if dq.Records != 2 {
		t.Errorf("Records = %d", dq.Records)
	}
	if !dq.LastPurchase.Equal(b.PurchaseTimestamp) || !dq.FirstPurchase.Equal(a.PurchaseTimestamp) {
		t.Errorf("range = %v..%v", dq.FirstPurchase, dq.LastPurchase)
	}
	for _, c := range dq.Columns {
		if c.Column == "customer_state" && (c.Missing != 1 || c.MissingPct != 50) {
			t.Errorf("customer_state = %+v", c)
		}
		if c.Missing == 0 {
			t.Errorf("complete column %q listed", c.Column)
		}
	}
}

func TestRun(t *testing.T) {
	e := NewEngine(nil, DefaultThresholds())
	for _, name := range Names() {
		got, err := e.Run(name)
		if err != nil {
			t.Errorf("Run(%q) error: %v", name, err)
		}
		if got == nil {
			t.Errorf("Run(%q) returned nil", name)
		}
	}
	if _, err := e.Run("nope"); !errors.Is(err, ErrUnknownReport) {
		t.Errorf("expected ErrUnknownReport, got %v", err)
	}
	if all := e.RunAll(); len(all) != len(Names()) {
		t.Errorf("RunAll returned %d reports", len(all))
	}
}

func BenchmarkEngine(b *testing.B) {
	facts := make([]models.OrderFact, 0, 10000)
	for i := 0; i < 10000; i++ {
		status := models.CartCompleted
		if i%7 == 0 {
			status = models.CartAbandoned
		}
		f := withCategory(fact(fmt.Sprint(i), status, float64(i%900)), fmt.Sprint("cat", i%40))
		f.CustomerUniqueID = strPtr(fmt.Sprint("cust", i%3000))
		facts = append(facts, f)
	}
	e := NewEngine(facts, DefaultThresholds())

	for b.Loop() {
		e.RunAll()
	}
}
