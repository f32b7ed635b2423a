package batch

// EstimateTokens approximates the token count of a text as
// ceil(bytes/4). The estimate is deliberately pure: batching decisions
// must be reproducible for the same input regardless of environment.
func EstimateTokens(text string) int {
	n := len(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
