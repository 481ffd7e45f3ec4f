package stats

import (
	"sort"
	"strings"
	"unicode"
)

// TermCount is one entry of a term frequency ranking.
type TermCount struct {
	Term  string
	Count int
}

// Tokenize lowercases s and splits it into runs of letters and digits.
// Works for any script, including Arabic.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.Is(unicode.Mn, r)
	})
}

// TermCounts counts tokens across texts. Stop words and single-rune tokens are
// skipped when skipStopWords is set.
func TermCounts(texts []string, skipStopWords bool) map[string]int {
	counts := make(map[string]int)
	for _, t := range texts {
		for _, tok := range Tokenize(t) {
			if skipStopWords && (stopWords[tok] || len([]rune(tok)) < 2) {
				continue
			}
			counts[tok]++
		}
	}
	return counts
}

// TopTerms returns the n most frequent terms, ties broken alphabetically.
func TopTerms(texts []string, n int, skipStopWords bool) []TermCount {
	counts := TermCounts(texts, skipStopWords)
	out := make([]TermCount, 0, len(counts))
	for term, c := range counts {
		out = append(out, TermCount{Term: term, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Term < out[j].Term
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Polarity scores s between -1 (negative) and 1 (positive) with a small
// English and Arabic lexicon. Texts with no lexicon hits score 0.
func Polarity(s string) float64 {
	var pos, neg int
	negate := false
	for _, tok := range Tokenize(s) {
		if negators[tok] {
			negate = true
			continue
		}
		switch {
		case positiveWords[tok]:
			if negate {
				neg++
			} else {
				pos++
			}
		case negativeWords[tok]:
			if negate {
				pos++
			} else {
				neg++
			}
		}
		negate = false
	}
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

// Sentiment buckets Polarity into "positive", "negative" or "neutral".
func Sentiment(s string) string {
	p := Polarity(s)
	switch {
	case p > 0.05:
		return "positive"
	case p < -0.05:
		return "negative"
	default:
		return "neutral"
	}
}

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

var stopWords = wordSet(
	"the", "a", "an", "and", "or", "but", "of", "to", "in", "on", "at", "for",
	"with", "is", "are", "was", "were", "be", "been", "it", "this", "that",
	"i", "you", "he", "she", "we", "they", "my", "your", "our", "their",
	"rt", "http", "https", "co", "amp",
	"في", "من", "على", "إلى", "الى", "عن", "مع", "هذا", "هذه", "ان", "أن",
	"و", "يا", "ما", "لا", "هو", "هي", "كل", "الله",
)

var negators = wordSet("not", "no", "never", "dont", "don", "isnt", "wasnt", "ليس", "لا", "لم", "لن", "غير")

var positiveWords = wordSet(
	"good", "great", "excellent", "amazing", "love", "like", "happy", "best",
	"awesome", "nice", "wonderful", "thanks", "thank", "beautiful", "win", "success",
	"جميل", "رائع", "ممتاز", "شكرا", "حب", "سعيد", "أفضل", "افضل", "نجاح", "جيد", "مبروك",
)

var negativeWords = wordSet(
	"bad", "terrible", "awful", "hate", "worst", "sad", "angry", "poor", "fail",
	"failure", "problem", "wrong", "disappointed", "horrible", "ugly",
	"سيء", "سيئ", "فشل", "مشكلة", "حزين", "غضب", "أسوأ", "اسوأ", "كارثة", "ظلم",
)
