package mask

// VisibleTail is the number of trailing characters left readable.
const VisibleTail = 4

const maskChar = 'X'

// Mask hides every character of id except the last VisibleTail ones.
// Identifiers shorter than VisibleTail are returned as is.
func Mask(id string) string {
	r := []rune(id)
	if len(r) <= VisibleTail {
		return id
	}
	for i := 0; i < len(r)-VisibleTail; i++ {
		r[i] = maskChar
	}
	return string(r)
}
