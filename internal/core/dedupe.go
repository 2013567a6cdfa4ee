package core

// Dedupe removes recipients whose lower-cased email was already seen.
// The first occurrence wins and order is preserved. Dropped duplicates are
// not reported; they are not errors.
func Dedupe(list []Recipient) []Recipient {
	seen := make(map[string]struct{}, len(list))
	out := make([]Recipient, 0, len(list))

	for _, r := range list {
		key := r.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
