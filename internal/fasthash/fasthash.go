// Package fasthash contains utilities for fast hashing of strings.
package fasthash

import "strconv"

// String implements the djb2 hash algorithm for a string.
func String(str string) (hash uint32) {
	if str == "" {
		return 0
	}

	return add(uint32(5381), str)
}

// Salted returns the djb2 hash of str with the decimal representation of salt
// appended to it.  A zero salt gives the same result as [String], so that the
// first hash of a text never depends on the salting scheme.
func Salted(str string, salt uint32) (hash uint32) {
	if salt == 0 {
		return String(str)
	}

	var buf [10]byte
	saltStr := strconv.AppendUint(buf[:0], uint64(salt), 10)

	return add(add(uint32(5381), str), string(saltStr))
}

// add continues the djb2 hash computation of hash with the bytes of str.
func add(hash uint32, str string) (res uint32) {
	for i := range len(str) {
		hash = (hash * 33) ^ uint32(str[i])
	}

	return hash
}
