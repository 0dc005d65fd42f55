package processor

import (
	"log"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const defaultEncoding = "cl100k_base"

// TokenCounter counts model tokens. When the BPE ranks cannot be loaded, or
// Estimate is set, it falls back to four runes per token.
type TokenCounter struct {
	Estimate bool

	once sync.Once
	enc  *tiktoken.Tiktoken
}

func (tc *TokenCounter) encoding() *tiktoken.Tiktoken {
	tc.once.Do(func() {
		if tc.Estimate {
			return
		}
		enc, err := tiktoken.GetEncoding(defaultEncoding)
		if err != nil {
			log.Printf("tiktoken unavailable, estimating token counts: %v", err)
			return
		}
		tc.enc = enc
	})
	return tc.enc
}

func (tc *TokenCounter) Count(text string) int {
	if enc := tc.encoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return (utf8.RuneCountInString(text) + 3) / 4
}

// Budget joins parts with sep until adding the next part would exceed limit tokens.
// It always keeps the first part so callers never send an empty context.
func (tc *TokenCounter) Budget(parts []string, sep string, limit int) (string, int) {
	sepTokens := tc.Count(sep)
	used, taken := 0, 0
	for i, part := range parts {
		n := tc.Count(part)
		if i > 0 {
			n += sepTokens
		}
		if limit > 0 && used+n > limit && taken > 0 {
			break
		}
		used += n
		taken++
	}
	return strings.Join(parts[:taken], sep), taken
}
