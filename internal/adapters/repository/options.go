package repository

// Option applies a configuration option to the MemoryJournal.
type Option func(*MemoryJournal)

// WithCapacity bounds the number of rows kept; the oldest are dropped first.
// Non-positive values keep every row.
func WithCapacity(n int) Option {
	return func(j *MemoryJournal) {
		j.capacity = n
	}
}
