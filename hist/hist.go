// Package hist provides a fixed-size integer histogram with
// exponentially growing bucket widths. It is used as a streaming
// latency-quantile estimator: adding a sample is O(log max) and memory
// stays constant regardless of sample count. Quantiles are exact while
// values fall in the unit-width buckets and overestimate by at most one
// bucket width beyond that.
package hist

// Hist counts non-negative integer values in [0, max). The buckets are
// grouped into blocks of 1<<bits equal-width buckets; the first block
// has width 1 and each following block doubles it.
type Hist struct {
	Overflow int // values >= max

	n     int // buckets per block, a power of two
	max   int // first value that no longer fits
	count []int
}

// New returns a Hist covering [0, max) with a resolution of bits
func New(bits uint, max int) *Hist {
	h := &Hist{n: 1 << bits}
	last := h.bucket(max - 1)
	_, end := h.cover(last)
	h.count = make([]int, last+1)
	h.max = end
	return h
}

// bucket returns the bucket index for v, which must be in [0, max)
func (h *Hist) bucket(v int) int {
	// block p holds values [n*2^p - n, n*2^(p+1) - n)
	n := h.n
	if v < n {
		return v
	}
	p := uint(1)
	for n*(1<<p)-n <= v {
		p++
	}
	p--
	low := n*(1<<p) - n
	width := 1 << p
	return n*int(p) + (v-low)/width
}

// cover returns the half-open value interval [a, b) of a bucket
func (h *Hist) cover(bucket int) (a, b int) {
	n := h.n
	u, p := bucket%n, uint(bucket/n)
	width := 1 << p
	a = n*(1<<p) - n + u*width
	return a, a + width
}

// Add counts one sample. Negative values are ignored; values beyond
// the covered range are counted in Overflow.
func (h *Hist) Add(v int) {
	if v < 0 {
		return
	}
	if v >= h.max {
		h.Overflow++
		return
	}
	h.count[h.bucket(v)]++
}

// Total returns the number of in-range samples
func (h *Hist) Total() int {
	total := 0
	for _, c := range h.count {
		total += c
	}
	return total
}

// Quantile returns an estimate of the q-th sample quantile, q in [0,1].
// Overflowing samples are ignored. With no samples it returns 0.
func (h *Hist) Quantile(q float64) int {
	total := h.Total()
	if total == 0 {
		return 0
	}
	if q < 0 {
		q = 0
	}
	if q > 1 {
		q = 1
	}

	// rank of the wanted sample, 1-based
	rank := int(q*float64(total) + 0.5)
	if rank < 1 {
		rank = 1
	}
	if rank > total {
		rank = total
	}

	cum := 0
	for b, c := range h.count {
		if c == 0 {
			continue
		}
		cum += c
		if cum >= rank {
			a, end := h.cover(b)
			// interpolate within the bucket
			before := cum - c
			f := float64(rank-before) / float64(c)
			v := a + int(float64(end-a)*f)
			if v >= end {
				v = end - 1
			}
			return v
		}
	}
	a, _ := h.cover(len(h.count) - 1)
	return a
}

// Quantiles returns estimates for each probability in ps
func (h *Hist) Quantiles(ps []float64) []int {
	values := make([]int, len(ps))
	for i, p := range ps {
		values[i] = h.Quantile(p)
	}
	return values
}
