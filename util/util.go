// Package util contains helper functions used across the kernel packages.
package util

import "encoding/binary"

// Int is satisfied by all built-in integer types.
type Int interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Min returns the smaller of a and b.
func Min[T Int](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max[T Int](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// Rounddown aligns v down to the nearest multiple of b.
func Rounddown[T Int](v, b T) T {
	return v - (v % b)
}

// Roundup aligns v up to the nearest multiple of b.
func Roundup[T Int](v, b T) T {
	return Rounddown(v+b-1, b)
}

// Readn reads n little-endian bytes from a starting at off and returns the
// value. It panics if the requested region is out of bounds or n is
// unsupported.
func Readn(a []uint8, n int, off int) int {
	if off < 0 || off+n > len(a) {
		panic("Readn out of bounds")
	}
	switch n {
	case 8:
		return int(binary.LittleEndian.Uint64(a[off:]))
	case 4:
		return int(binary.LittleEndian.Uint32(a[off:]))
	case 2:
		return int(binary.LittleEndian.Uint16(a[off:]))
	case 1:
		return int(a[off])
	default:
		panic("unsupported size")
	}
}

// Writen writes val as sz little-endian bytes into a starting at off. It
// panics if the destination is out of bounds or sz is unsupported.
func Writen(a []uint8, sz int, off int, val int) {
	if off < 0 || off+sz > len(a) {
		panic("Writen out of bounds")
	}
	switch sz {
	case 8:
		binary.LittleEndian.PutUint64(a[off:], uint64(val))
	case 4:
		binary.LittleEndian.PutUint32(a[off:], uint32(val))
	case 2:
		binary.LittleEndian.PutUint16(a[off:], uint16(val))
	case 1:
		a[off] = uint8(val)
	default:
		panic("unsupported size")
	}
}
