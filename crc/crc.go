// Package crc implements the CRC-3, CRC-7 and CRC-8 variants RFC 3095
// §5.9.1 prescribes for ROHC header validation: a short CRC-3 over UO-0/
// UO-1 headers, a CRC-7 over UOR-2 headers, a CRC-8 over the IR and
// IR-DYN packets, and (ROHCv2) a 3-bit control CRC over reorder_ratio, MSN
// and IP-ID behaviors.
package crc

import "github.com/snksoft/crc"

// Width names one of the three CRC variants this package computes.
type Width int

const (
	Width3 Width = 3
	Width7 Width = 7
	Width8 Width = 8
)

// parameters per RFC 3095 §5.9.1: all three ROHC CRCs are reflected
// in/out with a zero final XOR, differing only in polynomial, width and
// initial value.
var params = map[Width]*crc.Parameters{
	Width3: {Width: 3, Polynomial: 0x3, Init: 0x7, ReflectIn: true, ReflectOut: true, FinalXor: 0x0},
	Width7: {Width: 7, Polynomial: 0x4f, Init: 0x7f, ReflectIn: true, ReflectOut: true, FinalXor: 0x0},
	Width8: {Width: 8, Polynomial: 0x07, Init: 0xff, ReflectIn: true, ReflectOut: true, FinalXor: 0x0},
}

// Hash computes a single ROHC CRC variant over repeated byte runs. It
// wraps a snksoft/crc.Hash configured with the RFC 3095 parameters for
// Width, sized so callers can precompute once per context and reuse it
// across packets (construction builds the 256-entry lookup table).
type Hash struct {
	width Width
	h     *crc.Hash
}

// New returns a Hash for the given CRC width.
func New(width Width) *Hash {
	p, ok := params[width]
	if !ok {
		panic("crc: unsupported width")
	}
	return &Hash{width: width, h: crc.NewHash(p)}
}

// Width reports the bit width this Hash computes.
func (h *Hash) Width() Width {
	return h.width
}

// Calculate returns the CRC of data, masked down to Width bits.
func (h *Hash) Calculate(data []byte) uint8 {
	v := h.h.CalculateCRC(data)
	return uint8(v) & mask(h.width)
}

func mask(w Width) uint8 {
	return byte(1<<uint(w) - 1)
}

// CRC3, CRC7 and CRC8 are the shared, precomputed hashes for each width.
// Building a Hash constructs a 256-entry lookup table, so every profile
// reuses these three instead of allocating its own; they are read-only
// after package init, safe for
// concurrent use by multiple compressor/decompressor instances without
// locking. Profiles pick the width per packet type: IR and
// IR-DYN use CRC8 over the relevant chain, UO-0/UO-1 headers use CRC3,
// UOR-2 headers use CRC7, and ROHCv2's control CRC (reorder_ratio/MSN/IP-ID behaviors) uses
// CRC3 as well, per RFC 5225 §6. co_repair's header CRC uses CRC7.
var (
	CRC3 = New(Width3)
	CRC7 = New(Width7)
	CRC8 = New(Width8)
)
