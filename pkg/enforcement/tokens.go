package enforcement

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	tokenEncoder *tiktoken.Tiktoken
	encoderOnce  sync.Once
	encoderErr   error
)

// initTokenEncoder lazily loads the cl100k_base encoding shared by every
// call to countTokens.
func initTokenEncoder() error {
	encoderOnce.Do(func() {
		tokenEncoder, encoderErr = tiktoken.GetEncoding("cl100k_base")
	})
	return encoderErr
}

// countTokens returns text's token count, falling back to a character
// estimate if the encoder failed to load.
func countTokens(text string) int {
	if err := initTokenEncoder(); err != nil {
		return estimateTokens(text)
	}
	return len(tokenEncoder.Encode(text, nil, nil))
}

// estimateTokens is the fallback used when tiktoken itself is unavailable.
func estimateTokens(text string) int {
	return len(text) / 4
}
