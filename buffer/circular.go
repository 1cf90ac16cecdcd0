package buffer

// CircularFloat is a fixed-size circular buffer of float64 values with
// running summary statistics over the retained window. The warmup metric
// adaptation keeps one per parameter dimension so that the mass matrix is
// estimated from recent draws only.
type CircularFloat struct {
	buffer    []float64 // actual storage
	pos       int       // Current position in buffer
	BufSize   int       // BufSize is the fixed number of values maintained in memory
	Count     int       // Count is the number of values in memory. Will always be <= BufSize
	TotalSeen int64     // TotalSeen is the total number of times Add has been called
}

// NewCircularFloat creates a new circular buffer holding totalSize values.
func NewCircularFloat(totalSize int) *CircularFloat {
	if totalSize < 2 {
		totalSize = 2
	}

	return &CircularFloat{
		buffer:  make([]float64, totalSize),
		pos:     0,
		BufSize: totalSize,
		Count:   0,
	}
}

// Internal: return the next array position
func (c *CircularFloat) nextPos() int {
	return (c.pos + 1) % c.BufSize
}

// Add appends the given value to the buffer, overwriting the oldest entry
func (c *CircularFloat) Add(v float64) {
	c.TotalSeen++

	c.buffer[c.pos] = v
	c.pos = c.nextPos()

	c.Count++
	if c.Count > c.BufSize {
		c.Count = c.BufSize // max out
	}
}

// Full is true once the window has wrapped at least once (every slot holds a
// live value)
func (c *CircularFloat) Full() bool {
	return c.Count >= c.BufSize
}

// Mean returns the mean of the retained values (0 for an empty buffer)
func (c *CircularFloat) Mean() float64 {
	if c.Count < 1 {
		return 0.0
	}

	sum := 0.0
	for i := 0; i < c.Count; i++ {
		sum += c.buffer[i]
	}
	return sum / float64(c.Count)
}

// Variance returns the unbiased sample variance of the retained values.
// Requires at least 2 values; returns 0 otherwise.
func (c *CircularFloat) Variance() float64 {
	if c.Count < 2 {
		return 0.0
	}

	m := c.Mean()
	sum := 0.0
	for i := 0; i < c.Count; i++ {
		d := c.buffer[i] - m
		sum += d * d
	}
	return sum / float64(c.Count-1)
}

// Reset empties the window without reallocating
func (c *CircularFloat) Reset() {
	c.pos = 0
	c.Count = 0
}
