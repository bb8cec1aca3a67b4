// Package bloom implements the membership filter that lets reads skip keys
// that were never written.
//
// Each key sets three bits chosen by fixed multiply-add hashes over its high
// and low 32-bit halves. The filter never forgets a key, so it has no false
// negatives. Bits are held in a roaring bitmap while resident and persisted
// as a raw array of little-endian 64-bit words, size/8 bytes long.
package bloom
