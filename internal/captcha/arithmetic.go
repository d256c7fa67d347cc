package captcha

import (
	"context"
	"fmt"
	"math/big"
	"regexp"
)

// PromptMarker is the text that identifies the arithmetic question label
const PromptMarker = "What is"

var digitRun = regexp.MustCompile(`\d+`)

// ParseArithmetic sums every run of decimal digits in prompt.
// "What is 3 plus 4" yields "7". A prompt without digits yields "" and
// ErrNoDigits.
func ParseArithmetic(prompt string) (string, error) {
	runs := digitRun.FindAllString(prompt, -1)
	if len(runs) == 0 {
		return "", ErrNoDigits
	}

	sum := new(big.Int)
	for _, run := range runs {
		n, ok := new(big.Int).SetString(run, 10)
		if !ok {
			return "", fmt.Errorf("invalid number %q in captcha prompt", run)
		}
		sum.Add(sum, n)
	}
	return sum.String(), nil
}

// ArithmeticSolver answers text challenges
type ArithmeticSolver struct{}

// Solve implements Solver
func (ArithmeticSolver) Solve(_ context.Context, challenge Challenge) (string, error) {
	if challenge.Kind != KindText {
		return "", fmt.Errorf("%w: arithmetic solver got %s", ErrUnsupportedChallenge, challenge.Kind)
	}
	return ParseArithmetic(challenge.Prompt)
}
