// Package classify assigns an expense category to free text by keyword
// matching against an ordered rule table.
package classify

import "strings"

// Rule maps a category to the keywords that select it.
type Rule struct {
	Category string
	Keywords []string
}

// DefaultRules is evaluated in order; the first rule with a matching keyword
// wins, so "grab food" resolves to Food before Transport sees "grab".
var DefaultRules = []Rule{
	{Category: "Bills", Keywords: []string{"ค่าบ้าน", "ค่าบิล", "ค่าไฟ", "ค่าน้ำ", "ค่าโทรศัพท์", "ค่าเน็ต", "ค่า.internet"}},
	{Category: "Food", Keywords: []string{"อาหาร", "ข้าว", "กาแฟ", "coffee", "ร้านอาหาร", "foodpanda", "grab food", "lineman", "mcdonald", "kfc"}},
	{Category: "Transport", Keywords: []string{"grab", "bolt", "taxi", "แท็กซี่", "bts", "mrt", "น้ำมัน", "ปั๊ม", "ptt", "ค่ารถ"}},
	{Category: "Shopping", Keywords: []string{"เซเว่น", "โลตัส", "บิ๊กซี", "makro", "lazada", "shopee", "central"}},
	{Category: "AIS and Premium", Keywords: []string{"netflix", "youtube", "spotify", "หนัง", "movie", "Ai", "เน็ต", "ค่าเน็ต", "internet", "ais", "true", "dtac"}},
}

type Classifier struct {
	rules []Rule
}

// New builds a classifier over rules. Keywords are lower-cased once here.
func New(rules []Rule) *Classifier {
	c := &Classifier{rules: make([]Rule, 0, len(rules))}
	for _, r := range rules {
		kws := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				kws = append(kws, k)
			}
		}
		c.rules = append(c.rules, Rule{Category: r.Category, Keywords: kws})
	}
	return c
}

// Classify returns the first category whose keywords occur in text,
// case-insensitively.
func (c *Classifier) Classify(text string) (string, bool) {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return "", false
	}
	for _, r := range c.rules {
		for _, k := range r.Keywords {
			if strings.Contains(lower, k) {
				return r.Category, true
			}
		}
	}
	return "", false
}

var defaultClassifier = New(DefaultRules)

// Classify uses DefaultRules.
func Classify(text string) (string, bool) {
	return defaultClassifier.Classify(text)
}
