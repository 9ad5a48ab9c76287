// Package slip pulls transaction fields out of OCR text from Thai bank
// transfer slips.
//
// Every extractor runs an ordered list of patterns and takes the first match
// that passes its sanity check, so a bad hit on an early pattern falls through
// to the later ones.
package slip

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"moneynotes/internal/core"
)

var maxAmount = decimal.NewFromInt(10_000_000)

var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)จำนวน[เงิน]*\s*:?\s*([\d,]+\.?\d*)`),
	regexp.MustCompile(`(?i)ยอด[เงิน]*\s*:?\s*([\d,]+\.?\d*)`),
	regexp.MustCompile(`(?i)amount\s*:?\s*([\d,]+\.?\d*)`),
	regexp.MustCompile(`(?i)THB\s*([\d,]+\.?\d*)`),
	regexp.MustCompile(`(?i)([\d,]+\.?\d*)\s*(?:THB|บาท)`),
	regexp.MustCompile(`฿\s*([\d,]+\.?\d*)`),
	regexp.MustCompile(`(\d{1,3}(?:,\d{3})*(?:\.\d{2}))`),
}

// ExtractAmount returns the first plausible amount, accepting only values in
// (0, 10,000,000).
func ExtractAmount(text string) (decimal.Decimal, bool) {
	for _, re := range amountPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := strings.TrimSuffix(strings.ReplaceAll(m[1], ",", ""), ".")
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			continue
		}
		if amount.IsPositive() && amount.LessThan(maxAmount) {
			return amount, true
		}
	}
	return decimal.Zero, false
}

var datePattern = regexp.MustCompile(`(?i)(\d{1,2})\s*(ม\.?ค\.?|ก\.?พ\.?|มี\.?ค\.?|เม\.?ย\.?|พ\.?ค\.?|มิ\.?ย\.?|ก\.?ค\.?|ส\.?ค\.?|ก\.?ย\.?|ต\.?ค\.?|พ\.?ย\.?|ธ\.?ค\.?|มกราคม|กุมภาพันธ์|มีนาคม|เมษายน|พฤษภาคม|มิถุนายน|กรกฎาคม|สิงหาคม|กันยายน|ตุลาคม|พฤศจิกายน|ธันวาคม)\s*(\d{2,4})`)

// thaiMonths is keyed by the month token with dots removed.
var thaiMonths = map[string]int{
	"มค": 1, "มกราคม": 1,
	"กพ": 2, "กุมภาพันธ์": 2,
	"มีค": 3, "มีนาคม": 3,
	"เมย": 4, "เมษายน": 4,
	"พค": 5, "พฤษภาคม": 5,
	"มิย": 6, "มิถุนายน": 6,
	"กค": 7, "กรกฎาคม": 7,
	"สค": 8, "สิงหาคม": 8,
	"กย": 9, "กันยายน": 9,
	"ตค": 10, "ตุลาคม": 10,
	"พย": 11, "พฤศจิกายน": 11,
	"ธค": 12, "ธันวาคม": 12,
}

const buddhistEraOffset = 543

// ExtractDate reads a "day month year" date written with a Thai month name.
// Two digit years are Buddhist era years in the 2500s; Buddhist era years are
// converted to the Gregorian calendar.
func ExtractDate(text string) (core.Date, bool) {
	m := datePattern.FindStringSubmatch(text)
	if m == nil {
		return core.Date{}, false
	}

	day, _ := strconv.Atoi(m[1])
	month, ok := thaiMonths[strings.ReplaceAll(m[2], ".", "")]
	if !ok {
		month = 1
	}

	yearStr := m[3]
	if len(yearStr) == 2 {
		yearStr = "25" + yearStr
	}
	year, _ := strconv.Atoi(yearStr)
	if year > 2500 {
		year -= buddhistEraOffset
	}

	d := core.NewDate(year, month, day)
	// reject dates that time.Date had to normalize, e.g. 31 Feb
	if d.Day() != day || d.Month() != month || d.Year() != year {
		return core.Date{}, false
	}
	return d, true
}

var timePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{1,2}):(\d{2})(?::\d{2})?\s*(?:น\.?)?`),
	regexp.MustCompile(`(\d{1,2})\.(\d{2})\s*(?:น\.?)`),
	regexp.MustCompile(`(?i)เวลา\s*:?\s*(\d{1,2})[:\.](\d{2})`),
}

// ExtractTime returns the first clock time with a valid hour.
func ExtractTime(text string) (core.Clock, bool) {
	for _, re := range timePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		c, err := core.NewClock(hour, minute)
		if err != nil {
			continue
		}
		return c, true
	}
	return core.Clock{}, false
}

var memoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)บันทึกช่วยจ[ำํา]+\s+(.+?)(?:\n|$)`),
	regexp.MustCompile(`(?i)ช่วยจ[ำํา]+\s+(.+?)(?:\n|$)`),
	regexp.MustCompile(`(?i)บันทึก\s*:?\s*(.+?)(?:\n|$)`),
	regexp.MustCompile(`(?i)หมายเหตุ\s*:?\s*(.+?)(?:\n|$)`),
	regexp.MustCompile(`(?i)memo\s*:?\s*(.+?)(?:\n|$)`),
}

var (
	memoJunk   = regexp.MustCompile(`[|\\/\[\]{}]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// ExtractMemo returns the rest of the line after a memo label, with OCR
// border characters stripped. It returns "" when no label is found.
func ExtractMemo(text string) string {
	for _, re := range memoPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil || strings.TrimSpace(m[1]) == "" {
			continue
		}
		memo := memoJunk.ReplaceAllString(strings.TrimSpace(m[1]), "")
		return strings.TrimSpace(whitespace.ReplaceAllString(memo, " "))
	}
	return ""
}
