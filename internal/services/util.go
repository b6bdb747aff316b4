package services

// chunk splits s into slices of at most size elements.
func chunk[T any](s []T, size int) [][]T {
	var out [][]T
	for size < len(s) {
		s, out = s[size:], append(out, s[:size])
	}
	if len(s) > 0 {
		out = append(out, s)
	}
	return out
}
