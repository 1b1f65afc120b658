package remote

// Partition splits hosts into contiguous groups, one per worker. parallelism
// is clamped to [1, len(hosts)]; every group holds len(hosts)/parallelism
// hosts and the last one absorbs the remainder.
func Partition(hosts []string, parallelism int) [][]string {
	if len(hosts) == 0 {
		return nil
	}
	if parallelism < 1 {
		parallelism = 1
	}
	if parallelism > len(hosts) {
		parallelism = len(hosts)
	}
	size := len(hosts) / parallelism
	parts := make([][]string, 0, parallelism)
	for i := 0; i < parallelism; i++ {
		start := i * size
		end := start + size
		if i == parallelism-1 {
			end = len(hosts)
		}
		parts = append(parts, hosts[start:end])
	}
	return parts
}
