package embedding

import (
	"hash/fnv"
	"strings"
)

// BERT special token ids and the size of the id space word hashes fold into.
const (
	tokenCLS  = 101
	tokenSEP  = 102
	vocabSize = 30000
	// hashed ids start past the reserved special-token range
	vocabOffset = 1000
)

// Tokenizer maps text to the three fixed-length int64 inputs a BERT-style
// encoder expects.
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// SimpleTokenizer lowercases whitespace-separated words and hashes each into
// the vocabulary. It lets a model run without shipping its real vocab file.
type SimpleTokenizer struct{}

// Tokenize emits [CLS] words... [SEP] padded with zeros to maxTokens. Words
// that do not fit before the closing [SEP] are dropped.
func (SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 0 {
		maxTokens = defaultTokenizerLength
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	seq := []int64{tokenCLS}
	for _, w := range SplitWords(text) {
		if len(seq) >= maxTokens-1 {
			break
		}
		seq = append(seq, vocabOffset+int64(HashString(strings.ToLower(w))%(vocabSize-vocabOffset)))
	}
	if len(seq) < maxTokens {
		seq = append(seq, tokenSEP)
	}
	copy(inputIDs, seq)
	for i := range seq {
		attentionMask[i] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

const defaultTokenizerLength = 256

// SplitWords is strings.Fields that returns nil for blank input.
func SplitWords(text string) []string {
	if words := strings.Fields(text); len(words) > 0 {
		return words
	}
	return nil
}

// HashString is a stable non-negative FNV-1a hash of s.
func HashString(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() & 0x7fffffff)
}
