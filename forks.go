package msgchain

// FindForks reports pairs of distinct entries that claim the same
// predecessor. Chain validation deliberately tolerates forks: a valid
// signature is a binding commitment by its signer no matter what others
// signed over the same prior state. Divergence detection is therefore a
// separate, consumer-side concern.
//
// The result pairs the index of the first entry seen for a given
// PrevHash with the index of each later, different entry sharing it.
// Byte-identical duplicates are not forks and are not reported.
func FindForks(entries []SignedEntry) [][2]int {
	type claim struct {
		index  int
		digest [DigestSize]byte
	}

	first := make(map[[DigestSize]byte]claim)
	var forks [][2]int

	for i, e := range entries {
		d := HashEntry(e)
		prev, seen := first[e.Message.PrevHash]
		if !seen {
			first[e.Message.PrevHash] = claim{index: i, digest: d}
			continue
		}
		if prev.digest != d {
			forks = append(forks, [2]int{prev.index, i})
		}
	}
	return forks
}
