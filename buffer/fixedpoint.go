package buffer

// DefaultMultiplier trades dynamic range for precision: values in roughly
// [-200, 200] keep ~1e-5 precision in an int32 word.
const DefaultMultiplier float32 = 1e7

// Encode converts a float to its fixed-point integer form so the grid can
// accumulate it with integer atomics.
func Encode(f, multiplier float32) int32 {
	return int32(f * multiplier)
}

// Decode converts a fixed-point integer back to float.
func Decode(i int32, multiplier float32) float32 {
	return float32(i) / multiplier
}
