package matcher

// Similarity computes a normalized Levenshtein similarity in [0, 1]:
// 1 - distance / max(len). Equal strings score 1, fully disjoint
// strings approach 0.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	ar := []rune(a)
	br := []rune(b)
	denom := len(ar)
	if len(br) > denom {
		denom = len(br)
	}

	dist := distance(ar, br)
	sim := 1 - float64(dist)/float64(denom)
	if sim < 0 {
		return 0
	}
	return sim
}

// distance is the classic two-row Levenshtein DP.
func distance(ar, br []rune) int {
	if len(ar) < len(br) {
		ar, br = br, ar
	}
	if len(br) == 0 {
		return len(ar)
	}

	prev := make([]int, len(br)+1)
	curr := make([]int, len(br)+1)
	for j := range prev {
		prev[j] = j
	}
	for i, ca := range ar {
		curr[0] = i + 1
		for j, cb := range br {
			ins := curr[j] + 1
			del := prev[j+1] + 1
			sub := prev[j]
			if ca != cb {
				sub++
			}
			curr[j+1] = min3(ins, del, sub)
		}
		prev, curr = curr, prev
	}
	return prev[len(br)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
