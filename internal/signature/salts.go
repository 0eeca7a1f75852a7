package signature

// saltTable holds the Version-1 family's fixed 64-bit salt constants, one per
// signature component up to len(saltTable). N beyond the table length is
// supported (catalogs are free to choose any N) by extending the table
// deterministically via splitmix64, seeded from the table's last constant —
// the extension is part of the versioned family and never changes once
// published.
//
// The constants themselves carry no meaning beyond being fixed; they were
// generated once and frozen. They are not all distinct: entry 51 repeats
// entry 31 and entries 55-62 repeat entries 38-45 (zero-based), so for
// n > 51 those component pairs always hold equal values.
var saltTable = [64]uint64{
	0x9e3779b97f4a7c15, 0xbf58476d1ce4e5b9, 0x94d049bb133111eb, 0xff51afd7ed558ccd,
	0xc4ceb9fe1a85ec53, 0x2545f4914f6cdd1d, 0x27d4eb2f165667c5, 0x85ebca6b,
	0xc2b2ae35, 0x165667b1, 0xd6e8feb86659fd93, 0xa5a5a5a5a5a5a5a5,
	0x5bd1e9955bd1e995, 0x1b873593, 0xcc9e2d51, 0xe6546b64,
	0x6b64e654, 0x2545f4910f6cdd1d, 0xff51afd7ed558ccc, 0xc4ceb9fe1a85ec52,
	0x9e3779b185ebca87, 0xc2b2ae3d27d4eb4f, 0x165667b19e3779f9, 0xd6e8feb86659fd91,
	0xa5a5a5a5c2b2ae35, 0x5bd1e9951b873593, 0x1b873593cc9e2d51, 0xcc9e2d51e6546b64,
	0xe6546b646b64e654, 0x6b64e6542545f491, 0x94d049bbff51afd7, 0xbf58476dc4ceb9fe,
	0x9e3779b9bf58476d, 0xff51afd794d049bb, 0xc4ceb9febf58476d, 0x2545f4919e3779b9,
	0x27d4eb2fc4ceb9fe, 0x85ebca6b2545f491, 0xc2b2ae3527d4eb2f, 0x165667b185ebca6b,
	0xd6e8feb8c2b2ae35, 0xa5a5a5a5165667b1, 0x5bd1e995d6e8feb8, 0x1b873593a5a5a5a5,
	0xcc9e2d515bd1e995, 0xe6546b641b873593, 0x6b64e654cc9e2d51, 0x2545f491e6546b64,
	0xff51afd76b64e654, 0xc4ceb9fe2545f491, 0x9e3779b9ff51afd7, 0xbf58476dc4ceb9fe,
	0x94d049bb9e3779b9, 0x27d4eb2fbf58476d, 0x85ebca6b94d049bb, 0xc2b2ae3527d4eb2f,
	0x165667b185ebca6b, 0xd6e8feb8c2b2ae35, 0xa5a5a5a5165667b1, 0x5bd1e995d6e8feb8,
	0x1b873593a5a5a5a5, 0xcc9e2d515bd1e995, 0xe6546b641b873593, 0x9e3779b9cc9e2d51,
}

// saltsFor returns the n salts to use for an n-component signature, extending
// saltTable deterministically when n exceeds its length.
func saltsFor(n int) []uint64 {
	salts := make([]uint64, n)

	copy(salts, saltTable[:min(n, len(saltTable))])

	if n <= len(saltTable) {
		return salts
	}

	seed := saltTable[len(saltTable)-1]

	for i := len(saltTable); i < n; i++ {
		seed = splitmix64(seed)
		salts[i] = seed
	}

	return salts
}

// splitmix64 is a fast, well-distributed 64-bit state advance used only to
// extend saltTable past its fixed length; it has no role in the rolling
// fingerprint itself.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	z := x
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb

	return z ^ (z >> 31)
}
