package slip

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneynotes/internal/apperr"
	"moneynotes/internal/ocr"
)

func TestExtractAmount(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"labelled thai with unit", "จำนวนเงิน: 1,234.50 บาท", "1234.50", true},
		{"total label", "ยอดเงิน 250.00", "250", true},
		{"english label", "Amount: 99.5", "99.5", true},
		{"currency prefix", "THB 1,000", "1000", true},
		{"currency suffix", "paid 450 บาท", "450", true},
		{"baht sign", "฿ 75.25", "75.25", true},
		{"bare decimal", "ref 12 total 3,210.00", "3210", true},
		{"out of range falls through", "จำนวน: 0\nTHB 20", "20", true},
		{"too large", "THB 10,000,000", "", false},
		{"nonsense", "nonsense", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractAmount(tt.text)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
			}
		})
	}
}

func TestExtractDate(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"1 ธ.ค. 67", "2024-12-01", true},
		{"วันที่ 15 มี.ค. 2568 10:20", "2025-03-15", true},
		{"3 มกราคม 2025", "2025-01-03", true},
		{"28 กพ 66", "2023-02-28", true},
		{"31 ก.พ. 67", "", false},
		{"no date here", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ExtractDate(tt.text)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got.String())
			}
		})
	}
}

func TestExtractTime(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"14:35 น.", "14:35", true},
		{"9:05:33", "09:05", true},
		{"เวลา 08.15 น.", "08:15", true},
		{"25:00 then 10.30 น.", "10:30", true},
		{"none", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ExtractTime(tt.text)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got.String())
			}
		})
	}
}

func TestExtractMemo(t *testing.T) {
	assert.Equal(t, "ค่ากาแฟ ร้านหน้าออฟฟิศ", ExtractMemo("โอนเงินสำเร็จ\nบันทึกช่วยจำ ค่ากาแฟ | ร้านหน้าออฟฟิศ\nเลขที่ 123"))
	assert.Equal(t, "lunch with team", ExtractMemo("Memo: lunch   with [team]"))
	assert.Equal(t, "ค่าไฟ", ExtractMemo("หมายเหตุ : ค่าไฟ"))
	assert.Equal(t, "", ExtractMemo("no label"))
}

func TestParseClassifiesOnlyFromMemo(t *testing.T) {
	text := "จำนวนเงิน 120.00 บาท\n1 ธ.ค. 67 12:30 น.\nบันทึกช่วยจำ coffee"
	r := Parse(text)
	require.NotNil(t, r.Amount)
	require.NotNil(t, r.Date)
	require.NotNil(t, r.Time)
	assert.Equal(t, "2024-12-01", r.Date.String())
	assert.Equal(t, "12:30", r.Time.String())
	assert.Equal(t, "coffee", r.Memo)
	assert.Equal(t, "Food", r.Category)

	noMemo := Parse("coffee 50 บาท")
	assert.Empty(t, noMemo.Memo)
	assert.Empty(t, noMemo.Category)

	assert.True(t, Parse("").Empty())
}

func TestScannerScan(t *testing.T) {
	var seen []int
	rec := ocr.RecognizerFunc(func(ctx context.Context, image io.Reader, progress ocr.ProgressFunc) (string, error) {
		progress(0)
		progress(100)
		return "THB 80\nmemo grab", nil
	})

	r, err := NewScanner(rec, nil).Scan(context.Background(), strings.NewReader("img"), func(p int) { seen = append(seen, p) })
	require.NoError(t, err)
	assert.Equal(t, []int{0, 100}, seen)
	assert.Equal(t, "Transport", r.Category)
	assert.True(t, r.Amount.Equal(decimal.NewFromInt(80)))
}

func TestScannerRecognitionFailure(t *testing.T) {
	rec := ocr.RecognizerFunc(func(ctx context.Context, image io.Reader, progress ocr.ProgressFunc) (string, error) {
		return "", errors.New("engine crashed")
	})

	_, err := NewScanner(rec, nil).Scan(context.Background(), strings.NewReader("img"), nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindRecognition, apperr.KindOf(err))
}
