package controller

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/nstogner/cortex/pkg/domain"
)

var (
	tokenEncoder *tiktoken.Tiktoken
	encoderOnce  sync.Once
	encoderErr   error
)

func initTokenEncoder() error {
	encoderOnce.Do(func() {
		tokenEncoder, encoderErr = tiktoken.GetEncoding("cl100k_base")
	})
	return encoderErr
}

// CountTokens counts the tokens in text with the cl100k_base encoding, or
// estimates ~4 chars per token when the encoding is unavailable.
func CountTokens(text string) int {
	if err := initTokenEncoder(); err != nil {
		return estimateTokens(text)
	}
	return len(tokenEncoder.Encode(text, nil, nil))
}

// CountEventTokens sums the tokens of the events' content.
func CountEventTokens(events []domain.Event) int {
	total := 0
	for _, e := range events {
		total += CountTokens(e.Content)
	}
	return total
}

func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
