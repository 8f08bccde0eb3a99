package classify

// Predicates decide bucket membership. They are evaluated in order: Passed,
// then Failed, then Ongoing. A record matching none of them is Other.
type Predicates[T any] struct {
	Passed  func(T) bool
	Failed  func(T) bool
	Ongoing func(T) bool
}

// Buckets is the four-way partition of a record slice.
type Buckets[T any] struct {
	Pass    []T
	Fail    []T
	Ongoing []T
	Other   []T
}

// Counts is the summary shape reported in the passing fallback.
type Counts struct {
	Fail  int
	Pass  int
	Total int
}

// Triple returns [fail, pass, total].
func (c Counts) Triple() [3]int {
	return [3]int{c.Fail, c.Pass, c.Total}
}

// Counts summarises b. Total covers all four buckets.
func (b Buckets[T]) Counts() Counts {
	return Counts{
		Fail:  len(b.Fail),
		Pass:  len(b.Pass),
		Total: b.Len(),
	}
}

// Len returns the number of records across all buckets.
func (b Buckets[T]) Len() int {
	return len(b.Pass) + len(b.Fail) + len(b.Ongoing) + len(b.Other)
}

// Completed returns Pass followed by Fail.
func (b Buckets[T]) Completed() []T {
	out := make([]T, 0, len(b.Pass)+len(b.Fail))
	out = append(out, b.Pass...)
	return append(out, b.Fail...)
}

// Partition sorts records into buckets. It does not modify records.
func Partition[T any](records []T, p Predicates[T]) Buckets[T] {
	var b Buckets[T]
	for _, r := range records {
		b.add(r, p)
	}
	return b
}

// GroupBy partitions records per group. groupOf must be total; every record
// lands in exactly one bucket of exactly one group.
func GroupBy[T any](records []T, groupOf func(T) string, p Predicates[T]) map[string]Buckets[T] {
	out := make(map[string]Buckets[T])
	for _, r := range records {
		g := groupOf(r)
		b := out[g]
		b.add(r, p)
		out[g] = b
	}
	return out
}

func (b *Buckets[T]) add(r T, p Predicates[T]) {
	switch {
	case call(p.Passed, r):
		b.Pass = append(b.Pass, r)
	case call(p.Failed, r):
		b.Fail = append(b.Fail, r)
	case call(p.Ongoing, r):
		b.Ongoing = append(b.Ongoing, r)
	default:
		b.Other = append(b.Other, r)
	}
}

func call[T any](f func(T) bool, r T) bool {
	return f != nil && f(r)
}
