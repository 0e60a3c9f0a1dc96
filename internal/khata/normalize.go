// normalize.go - Clean extracted rows before matching

package khata

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// DefaultRollWidth is the minimum width numeric roll numbers are padded to
const DefaultRollWidth = 2

// ToASCIIDigits rewrites Bengali digits (০-৯) as 0-9
func ToASCIIDigits(s string) string {
	if !strings.ContainsFunc(s, isBengaliDigit) {
		return s
	}
	return strings.Map(func(r rune) rune {
		if isBengaliDigit(r) {
			return '0' + (r - '০')
		}
		return r
	}, s)
}

func isBengaliDigit(r rune) bool {
	return r >= '০' && r <= '৯'
}

// NormalizeRoll trims the roll, converts its digits and, when it is purely
// numeric, re-pads it to width ("1", "০১" and "001" all become "01")
func NormalizeRoll(roll string, width int) string {
	roll = strings.TrimSpace(ToASCIIDigits(roll))
	n, ok := numericRoll(roll)
	if !ok {
		return roll
	}
	return fmt.Sprintf("%0*d", width, n)
}

func rollWidth(width int) int {
	if width <= 0 {
		return DefaultRollWidth
	}
	return width
}

// RollKey is the comparison form of a roll number: "7", "07" and "০৭" share
// one key, other rolls compare case-insensitively
func RollKey(roll string) string {
	roll = strings.TrimSpace(ToASCIIDigits(roll))
	if n, ok := numericRoll(roll); ok {
		return strconv.Itoa(n)
	}
	return strings.ToUpper(roll)
}

func numericRoll(roll string) (int, bool) {
	if roll == "" {
		return 0, false
	}
	for _, r := range roll {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(roll)
	if err != nil {
		return 0, false
	}
	return n, true
}

// cleanName collapses runs of whitespace
func cleanName(name string) string {
	return strings.Join(strings.FieldsFunc(name, unicode.IsSpace), " ")
}

// Normalize converts digits, pads rolls, drops nameless rows and numbers rows
// with no roll after the highest roll in the batch. It returns the cleaned
// rows and any warnings for the teacher.
func Normalize(marks []ExtractedMark, width int) ([]ExtractedMark, []string) {
	width = rollWidth(width)

	out := make([]ExtractedMark, 0, len(marks))
	dropped := 0
	highest := 0
	for _, m := range marks {
		m.Name = cleanName(m.Name)
		if m.Name == "" {
			dropped++
			continue
		}
		m.RollNumber = NormalizeRoll(m.RollNumber, width)
		if n, ok := numericRoll(m.RollNumber); ok && n > highest {
			highest = n
		}
		out = append(out, m)
	}

	var warnings []string
	if dropped > 0 {
		warnings = append(warnings, fmt.Sprintf("নাম ছাড়া %d টি সারি বাদ দেওয়া হয়েছে", dropped))
	}

	assigned := 0
	next := highest + 1
	for i := range out {
		if out[i].RollNumber != "" {
			continue
		}
		out[i].RollNumber = fmt.Sprintf("%0*d", width, next)
		next++
		assigned++
	}
	if assigned > 0 {
		warnings = append(warnings, fmt.Sprintf("%d টি সারিতে রোল নম্বর ছিল না, অস্থায়ী রোল দেওয়া হয়েছে", assigned))
	}

	return out, warnings
}
