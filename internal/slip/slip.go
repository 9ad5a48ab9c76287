package slip

import (
	"context"
	"io"
	"log/slog"

	"github.com/shopspring/decimal"

	"moneynotes/internal/apperr"
	"moneynotes/internal/classify"
	"moneynotes/internal/core"
	"moneynotes/internal/log"
	"moneynotes/internal/ocr"
)

// Result holds whatever could be read from a slip. Absent fields are nil or
// empty and leave the corresponding form field untouched.
type Result struct {
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	Date     *core.Date       `json:"date,omitempty"`
	Time     *core.Clock      `json:"time,omitempty"`
	Memo     string           `json:"memo,omitempty"`
	Category string           `json:"category,omitempty"`
}

// Empty reports whether nothing at all was extracted.
func (r Result) Empty() bool {
	return r.Amount == nil && r.Date == nil && r.Time == nil && r.Memo == "" && r.Category == ""
}

// Parse runs every extractor over text. The category is only guessed from a
// non-empty memo.
func Parse(text string) Result {
	return parseWith(text, classify.Classify)
}

func parseWith(text string, classifyFn func(string) (string, bool)) Result {
	var r Result
	if amount, ok := ExtractAmount(text); ok {
		r.Amount = &amount
	}
	if d, ok := ExtractDate(text); ok {
		r.Date = &d
	}
	if c, ok := ExtractTime(text); ok {
		r.Time = &c
	}
	r.Memo = ExtractMemo(text)
	if r.Memo != "" {
		if cat, ok := classifyFn(r.Memo); ok {
			r.Category = cat
		}
	}
	return r
}

// Scanner couples an OCR engine with the field extractors.
type Scanner struct {
	recognizer ocr.Recognizer
	classifier *classify.Classifier
}

func NewScanner(recognizer ocr.Recognizer, classifier *classify.Classifier) *Scanner {
	if classifier == nil {
		classifier = classify.New(classify.DefaultRules)
	}
	return &Scanner{recognizer: recognizer, classifier: classifier}
}

// Scan recognizes image and parses the text. Recognition failures come back
// as recognition errors so callers can show a notice and keep the form as is.
func (s *Scanner) Scan(ctx context.Context, image io.Reader, progress ocr.ProgressFunc) (Result, error) {
	text, err := s.recognizer.Recognize(ctx, image, progress)
	if err != nil {
		slog.WarnContext(ctx, "Slip recognition failed", log.FieldError, err)
		return Result{}, apperr.Recognition("scan slip", err)
	}

	result := parseWith(text, s.classifier.Classify)

	slog.InfoContext(ctx, "Slip parsed",
		"has_amount", result.Amount != nil,
		"has_date", result.Date != nil,
		"has_time", result.Time != nil,
		"category", result.Category)

	return result, nil
}
