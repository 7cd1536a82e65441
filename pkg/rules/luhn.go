package rules

const (
	minCardDigits = 13
	maxCardDigits = 19
)

// Luhn reports whether digits (ASCII '0'-'9' only) pass the mod-10 checksum.
func Luhn(digits string) bool {
	if digits == "" {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// FindCardNumber returns the first run of 13 to 19 digits that passes the
// Luhn checksum. A run may contain single spaces or hyphens between digits.
// When a whole run does not qualify, the digit groups inside it are tried
// too, so a card number followed or preceded by other separated digits is
// still found.
func FindCardNumber(text string) (string, bool) {
	digits := make([]byte, 0, maxCardDigits+1)
	var bounds []int // digit count at each separator in the run
	separated := false

	candidate := func() (string, bool) {
		if len(digits) == 0 {
			return "", false
		}
		ends := bounds
		if len(ends) == 0 || ends[len(ends)-1] != len(digits) {
			ends = append(ends, len(digits))
		}
		starts := append([]int{0}, ends[:len(ends)-1]...)
		for _, from := range starts {
			for j := len(ends) - 1; j >= 0 && ends[j] > from; j-- {
				n := ends[j] - from
				if n < minCardDigits || n > maxCardDigits {
					continue
				}
				if number := string(digits[from:ends[j]]); Luhn(number) {
					return number, true
				}
			}
		}
		return "", false
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c >= '0' && c <= '9':
			digits = append(digits, c)
			separated = false
		case (c == ' ' || c == '-') && len(digits) > 0 && !separated:
			bounds = append(bounds, len(digits))
			separated = true
		default:
			if number, ok := candidate(); ok {
				return number, true
			}
			digits = digits[:0]
			bounds = bounds[:0]
			separated = false
		}
	}
	return candidate()
}
