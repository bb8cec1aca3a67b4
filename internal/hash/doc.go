// Package hash provides the CRC32-Castagnoli checksum used to validate
// object uploads.
//
// S3 accepts a CRC32C of the payload (ChecksumCRC32C) and rejects the
// upload if the bytes it received do not match.
//
//	sum := hash.CRC32C(data)
package hash
