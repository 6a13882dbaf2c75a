package nutrition

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/fdg312/meal-recommender/internal/foods"
)

func num(v float64) *float64 { return &v }

func str(s string) *string { return &s }

type nutrients struct {
	energy, protein, fat, sugar, sodium, fiber *float64
}

func item(name string, n nutrients) foods.FoodItem {
	return foods.FoodItem{
		Name:       name,
		Category:   str("구이류"),
		EnergyKcal: n.energy,
		ProteinG:   n.protein,
		FatG:       n.fat,
		SugarG:     n.sugar,
		SodiumMg:   n.sodium,
		FiberG:     n.fiber,
	}
}

func names(items []foods.FoodItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}

func fixture() []foods.FoodItem {
	return []foods.FoodItem{
		item("salad", nutrients{energy: num(150), protein: num(5), fat: num(3), sugar: num(4), sodium: num(300), fiber: num(6)}),
		item("oatmeal", nutrients{energy: num(380), protein: num(13), fat: num(7), sugar: num(1), sodium: num(5), fiber: num(10)}),
		item("cake", nutrients{energy: num(420), protein: num(5), fat: num(20), sugar: num(35), sodium: num(250), fiber: num(1)}),
		item("ramen", nutrients{energy: num(500), protein: num(10), fat: num(16), sugar: num(3), sodium: num(2500), fiber: num(2)}),
		item("chicken", nutrients{energy: num(165), protein: num(170), fat: num(4), sugar: num(0), sodium: num(70), fiber: nil}),
		item("beef", nutrients{energy: num(2800), protein: num(150), fat: num(60), sugar: num(0), sodium: num(60), fiber: num(0)}),
		item("tofu", nutrients{energy: num(76), protein: num(8), fat: num(5), sugar: nil, sodium: num(7), fiber: num(1)}),
	}
}

func TestBaselineTargets(t *testing.T) {
	got := BaselineTargets(Profile{Weight: 70})
	if got.ProteinG != 112 || got.FatG != 70 {
		t.Fatalf("BaselineTargets = %+v", got)
	}
}

func TestTargetsFor(t *testing.T) {
	tests := []struct {
		goal    Goal
		gender  Gender
		protein float64
	}{
		{GoalDiet, GenderMan, 160},
		{GoalMuscleGain, GenderMan, 200},
		{GoalMuscleGain, GenderWoman, 150},
		{GoalMaintain, GenderWoman, 100},
		{GoalBulk, GenderWoman, 200},
		{GoalBulk, GenderMan, 150},
	}
	for _, tt := range tests {
		got := TargetsFor(Profile{Weight: 100, BMR: 2000, Goal: tt.goal, Gender: tt.gender})
		if got.ProteinG != tt.protein {
			t.Errorf("%s/%s protein = %v, want %v", tt.goal, tt.gender, got.ProteinG, tt.protein)
		}
		if got.FatG != 100 {
			t.Errorf("%s/%s fat = %v, want 100", tt.goal, tt.gender, got.FatG)
		}
	}
}

func TestFilterDiet(t *testing.T) {
	p := Profile{Weight: 70, BMR: 2000, Goal: GoalDiet, Gender: GenderWoman}
	got, err := Filter(p, fixture(), PolicyStrict)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}

	// cake fails sugar, ramen fails sodium, beef fails energy, tofu has no sugar.
	want := []string{"oatmeal", "salad", "chicken"}
	if !reflect.DeepEqual(names(got), want) {
		t.Fatalf("Filter() = %v, want %v", names(got), want)
	}
	for _, it := range got {
		if *it.SugarG > 20 || *it.SodiumMg > 2000 || *it.EnergyKcal > 1600 {
			t.Errorf("%s violates diet thresholds", it.Name)
		}
	}
}

func TestFilterMuscleGainExcludesBelowTarget(t *testing.T) {
	p := Profile{Weight: 80, BMR: 2500, Goal: GoalMuscleGain, Gender: GenderMan}
	got, err := Filter(p, fixture(), PolicyStrict)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}

	// Target is 160 g; beef at 150 g is out, chicken at 170 g stays.
	if want := []string{"chicken"}; !reflect.DeepEqual(names(got), want) {
		t.Fatalf("Filter() = %v, want %v", names(got), want)
	}
}

func TestFilterMaintain(t *testing.T) {
	p := Profile{Weight: 10, BMR: 2000, Goal: GoalMaintain, Gender: GenderMan}
	got, err := Filter(p, fixture(), PolicyStrict)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}

	want := []string{"chicken", "beef", "oatmeal"}
	if !reflect.DeepEqual(names(got), want) {
		t.Fatalf("Filter() = %v, want %v", names(got), want)
	}
}

func TestFilterBulkSortsByProteinThenEnergy(t *testing.T) {
	items := []foods.FoodItem{
		item("a", nutrients{energy: num(100), protein: num(50)}),
		item("b", nutrients{energy: num(300), protein: num(50)}),
		item("c", nutrients{energy: num(200), protein: num(80)}),
		item("d", nutrients{energy: nil, protein: num(90)}),
		item("e", nutrients{energy: num(900), protein: num(60)}),
	}
	p := Profile{Weight: 20, BMR: 500, Goal: GoalBulk, Gender: GenderWoman}
	got, err := Filter(p, items, PolicyStrict)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}

	// Target 40 g, energy <= 600; d has no energy, e exceeds it.
	want := []string{"c", "b", "a"}
	if !reflect.DeepEqual(names(got), want) {
		t.Fatalf("Filter() = %v, want %v", names(got), want)
	}
}

func TestFilterDietZeroBMRIsEmpty(t *testing.T) {
	got, err := Filter(Profile{Weight: 70, BMR: 0, Goal: GoalDiet, Gender: GenderMan}, fixture(), PolicyStrict)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("Filter() = %v, want empty non-nil slice", got)
	}
}

func TestFilterMissingValuesNeverPass(t *testing.T) {
	items := []foods.FoodItem{item("blank", nutrients{})}
	for _, goal := range knownGoals {
		got, err := Filter(Profile{Weight: 0, BMR: 1e9, Goal: goal, Gender: GenderMan}, items, PolicyStrict)
		if err != nil {
			t.Fatalf("%s: Filter() error = %v", goal, err)
		}
		if len(got) != 0 {
			t.Errorf("%s: item with missing values passed", goal)
		}
	}
}

func TestFilterIsDeterministicAndDoesNotMutate(t *testing.T) {
	items := fixture()
	before := names(items)
	p := Profile{Weight: 10, BMR: 3000, Goal: GoalMaintain, Gender: GenderMan}

	first, err := Filter(p, items, PolicyStrict)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	second, _ := Filter(p, items, PolicyStrict)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Filter() not deterministic: %v vs %v", names(first), names(second))
	}
	if !reflect.DeepEqual(names(items), before) {
		t.Fatalf("input reordered: %v", names(items))
	}
}

func TestFilterIsIdempotent(t *testing.T) {
	for _, goal := range knownGoals {
		p := Profile{Weight: 10, BMR: 3000, Goal: goal, Gender: GenderWoman}
		once, _ := Filter(p, fixture(), PolicyStrict)
		twice, _ := Filter(p, once, PolicyStrict)
		if !reflect.DeepEqual(names(once), names(twice)) {
			t.Errorf("%s: Filter(Filter(x)) = %v, want %v", goal, names(twice), names(once))
		}
	}
}

func TestFilterStrictRejectsUnknown(t *testing.T) {
	tests := []struct {
		p     Profile
		field string
	}{
		{Profile{Weight: 70, BMR: 2000, Goal: "keto", Gender: GenderMan}, "goal"},
		{Profile{Weight: 70, BMR: 2000, Goal: GoalDiet, Gender: "other"}, "gender"},
	}
	for _, tt := range tests {
		_, err := Filter(tt.p, fixture(), PolicyStrict)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("Filter(%+v) error = %v, want *ValidationError", tt.p, err)
		}
		if verr.Field != tt.field {
			t.Errorf("Field = %q, want %q", verr.Field, tt.field)
		}
	}
}

func TestFilterLegacyPassesUnknownGoalThrough(t *testing.T) {
	items := fixture()
	got, err := Filter(Profile{Weight: 70, BMR: 2000, Goal: "keto", Gender: GenderMan}, items, PolicyLegacy)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if !reflect.DeepEqual(got, items) {
		t.Fatalf("legacy passthrough changed items: %v", names(got))
	}

	// An unrecognized gender takes the else branch: bulk target is 1.5 g/kg.
	got, err = Filter(Profile{Weight: 100, BMR: 10000, Goal: GoalBulk, Gender: "x"}, items, PolicyLegacy)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if want := []string{"chicken", "beef"}; !reflect.DeepEqual(names(got), want) {
		t.Fatalf("Filter() = %v, want %v", names(got), want)
	}
}

func TestSample(t *testing.T) {
	items := fixture()
	rng := NewRand(42)

	for n := 0; n <= len(items)+2; n++ {
		got := Sample(rng, items, n)
		want := n
		if want > len(items) {
			want = len(items)
		}
		if len(got) != want {
			t.Fatalf("Sample(n=%d) len = %d, want %d", n, len(got), want)
		}
		seen := map[string]bool{}
		for _, it := range got {
			if seen[it.Name] {
				t.Fatalf("Sample(n=%d) duplicate %q", n, it.Name)
			}
			seen[it.Name] = true
		}
	}

	if got := Sample(rng, nil, 3); got == nil || len(got) != 0 {
		t.Fatalf("Sample(nil) = %v, want empty non-nil", got)
	}
}

func TestSampleSeededIsReproducible(t *testing.T) {
	a := Sample(NewRand(7), fixture(), 3)
	b := Sample(NewRand(7), fixture(), 3)
	if !reflect.DeepEqual(names(a), names(b)) {
		t.Fatalf("same seed gave %v and %v", names(a), names(b))
	}
}

func TestSelectCandidatesSubsetOfFiltered(t *testing.T) {
	p := Profile{Weight: 10, BMR: 3000, Goal: GoalMaintain, Gender: GenderMan}
	filtered, _ := Filter(p, fixture(), PolicyStrict)
	allowed := map[string]bool{}
	for _, it := range filtered {
		allowed[it.Name] = true
	}

	rng := NewRand(1)
	for i := 0; i < 50; i++ {
		got, err := SelectCandidates(rng, p, fixture(), PolicyStrict)
		if err != nil {
			t.Fatalf("SelectCandidates() error = %v", err)
		}
		if len(got) > MaxCandidates {
			t.Fatalf("got %d candidates", len(got))
		}
		for _, it := range got {
			if !allowed[it.Name] {
				t.Fatalf("candidate %q not in filtered set", it.Name)
			}
		}
	}
}

func TestSelectorEmptyIsNotError(t *testing.T) {
	s := NewSelector(StaticFilter{Items: fixture(), Policy: PolicyStrict}, NewRand(3), 0)
	got, err := s.SelectCandidates(Profile{Weight: 70, BMR: 0, Goal: GoalDiet, Gender: GenderMan})
	if err != nil {
		t.Fatalf("SelectCandidates() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("SelectCandidates() = %v, want empty", got)
	}
}

func TestSelectorClampsSampleSize(t *testing.T) {
	filter := StaticFilter{Items: fixture(), Policy: PolicyStrict}
	p := Profile{Weight: 1, BMR: 2000, Goal: GoalMaintain, Gender: GenderMan}

	all, err := filter.Filter(p)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if len(all) <= MaxCandidates {
		t.Fatalf("fixture yields %d filtered items, need more than %d", len(all), MaxCandidates)
	}

	for _, size := range []int{4, 5, 100} {
		s := NewSelector(filter, NewRand(1), size)
		for i := 0; i < 20; i++ {
			got, err := s.SelectCandidates(p)
			if err != nil {
				t.Fatalf("SelectCandidates() error = %v", err)
			}
			if len(got) != MaxCandidates {
				t.Fatalf("sampleSize=%d: got %d candidates, want %d", size, len(got), MaxCandidates)
			}
		}
	}
}

func TestSelectorConcurrentUse(t *testing.T) {
	s := NewSelector(StaticFilter{Items: fixture(), Policy: PolicyStrict}, NewRand(9), 2)
	p := Profile{Weight: 10, BMR: 3000, Goal: GoalMaintain, Gender: GenderMan}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.SelectCandidates(p)
			if err != nil || len(got) != 2 {
				t.Errorf("SelectCandidates() = %d items, err %v", len(got), err)
			}
		}()
	}
	wg.Wait()
}

type countingFilter struct {
	calls atomic.Int32
	inner StaticFilter
}

func (c *countingFilter) Filter(p Profile) ([]foods.FoodItem, error) {
	c.calls.Add(1)
	return c.inner.Filter(p)
}

func TestCachedFilter(t *testing.T) {
	counter := &countingFilter{inner: StaticFilter{Items: fixture(), Policy: PolicyStrict}}
	f, err := NewCachedFilter(counter, 4)
	if err != nil {
		t.Fatalf("NewCachedFilter() error = %v", err)
	}

	p := Profile{Weight: 10, BMR: 3000, Goal: GoalMaintain, Gender: GenderMan}
	first, err := f.Filter(p)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	first[0], first[1] = first[1], first[0]

	second, _ := f.Filter(p)
	if counter.calls.Load() != 1 {
		t.Fatalf("inner calls = %d, want 1", counter.calls.Load())
	}
	want, _ := Filter(p, fixture(), PolicyStrict)
	if !reflect.DeepEqual(names(second), names(want)) {
		t.Fatalf("cached result = %v, want %v", names(second), names(want))
	}

	if _, err := f.Filter(Profile{Weight: 1, BMR: 1, Goal: "nope", Gender: GenderMan}); err == nil {
		t.Fatal("expected validation error through cache")
	}
	if got := f.(*CachedFilter).Len(); got != 1 {
		t.Fatalf("cache len = %d, want 1", got)
	}
}

func TestCachedFilterDisabled(t *testing.T) {
	inner := StaticFilter{Items: fixture()}
	f, err := NewCachedFilter(inner, 0)
	if err != nil {
		t.Fatalf("NewCachedFilter() error = %v", err)
	}
	if _, ok := f.(StaticFilter); !ok {
		t.Fatalf("size 0 should return the inner filter, got %T", f)
	}
}
