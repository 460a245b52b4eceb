package pipeline

// backoffTicks returns how many ticks to skip after n consecutive
// transient failures: 0, 1, 3, 7, ... capped at limit.
func backoffTicks(n, limit int) int {
	if n <= 1 || limit <= 0 {
		return 0
	}
	if n > 31 {
		return limit
	}
	return min(1<<(n-1)-1, limit)
}
