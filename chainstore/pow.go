package chainstore

import "math/big"

// maxTargetBits is the bit width of a full target. It is not referenced
// by the decoding or canonical-form checks below.
const maxTargetBits = 256

// CompactToBig decodes a Bitcoin-style compact target encoding: the top
// byte is a base-256 exponent, the low 23 bits of the remaining 3 bytes
// are a mantissa, and bit 0x00800000 of the mantissa word is reserved as
// a sign bit that must be zero for canonical positive targets.
func CompactToBig(bits uint32) *big.Int {
	mantissa := bits & 0x007fffff
	isNegative := bits&0x00800000 != 0
	exponent := bits >> 24

	var target *big.Int
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		target = big.NewInt(int64(mantissa))
	} else {
		target = big.NewInt(int64(mantissa))
		target.Lsh(target, uint(8*(exponent-3)))
	}

	if isNegative {
		target.Neg(target)
	}
	return target
}

// BigToCompact encodes target into the compact form, matching Bitcoin's
// canonical encoding exactly (including forcing the mantissa's sign bit
// to zero by shifting right one extra byte when the high bit of the
// first mantissa byte would otherwise be set).
func BigToCompact(target *big.Int) uint32 {
	if target.Sign() == 0 {
		return 0
	}

	isNegative := target.Sign() < 0
	work := new(big.Int).Abs(target)

	exponent := uint32((work.BitLen() + 7) / 8)
	var mantissa uint32
	if exponent <= 3 {
		mantissa = uint32(work.Int64())
		mantissa <<= 8 * (3 - exponent)
	} else {
		shifted := new(big.Int).Rsh(work, uint(8*(exponent-3)))
		mantissa = uint32(shifted.Int64())
	}

	// The mantissa's high bit is reserved as a sign flag; if set, shift
	// the whole value down one byte and bump the exponent to compensate,
	// exactly as Bitcoin's compact encoding requires for canonical form.
	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}

	compact := exponent<<24 | mantissa
	if isNegative {
		compact |= 0x00800000
	}
	return compact
}

// IsCanonicalCompact rejects non-canonical bits encodings: the mantissa's
// reserved sign bit must be zero, matching Bitcoin's consensus rule that
// negative targets are never valid (spec.md §4.2: "reject non-canonical
// encodings in the same way Bitcoin does").
func IsCanonicalCompact(bits uint32) bool {
	return bits&0x00800000 == 0
}

// TargetFromBits decodes bits into its target, per spec.md §4.2.
func TargetFromBits(bits uint32) *big.Int {
	return CompactToBig(bits)
}

// HashMeetsTarget reports whether the big-endian integer interpretation
// of hash is strictly less than target (spec.md §4.2 check 5, and the
// PoW testable property in §8).
func HashMeetsTarget(hashBE *big.Int, target *big.Int) bool {
	return hashBE.Cmp(target) < 0
}

// HashToBigEndianInt interprets a raw (internal little-endian byte order)
// hash as the big-endian integer used for PoW/target comparisons, i.e. it
// reverses the bytes before calling big.Int.SetBytes, matching the
// "int_be(hash)" notation in spec.md §4.2/§8.
func HashToBigEndianInt(hash [32]byte) *big.Int {
	reversed := make([]byte, 32)
	for i := 0; i < 32; i++ {
		reversed[i] = hash[31-i]
	}
	return new(big.Int).SetBytes(reversed)
}

// ChainWork returns the work contributed by a single block with the given
// compact target: 2^256 / (target+1).
func ChainWork(bits uint32) *big.Int {
	target := CompactToBig(bits)
	if target.Sign() <= 0 {
		return big.NewInt(0)
	}
	numerator := new(big.Int).Lsh(big.NewInt(1), 256)
	denominator := new(big.Int).Add(target, big.NewInt(1))
	return new(big.Int).Div(numerator, denominator)
}
