// Package captcha solves the challenges the PAN portal puts in front of its
// query form. Every modality is exposed through the same Solver interface so
// the fetch controller does not need to know which one a page rendered.
package captcha

import (
	"context"
	"errors"
	"fmt"
)

// Kind identifies the captcha modality
type Kind int

const (
	KindText Kind = iota + 1
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	ErrUnsupportedChallenge = errors.New("unsupported captcha challenge")
	ErrNoDigits             = errors.New("no digits found in captcha prompt")
)

// Challenge is either a text prompt or an encoded image, never both
type Challenge struct {
	Kind   Kind
	Prompt string
	Data   []byte
}

// TextChallenge wraps an arithmetic prompt such as "What is 3 plus 4"
func TextChallenge(prompt string) Challenge {
	return Challenge{Kind: KindText, Prompt: prompt}
}

// ImageChallenge wraps encoded image bytes or a data URI
func ImageChallenge(data []byte) Challenge {
	return Challenge{Kind: KindImage, Data: data}
}

// Solver answers a captcha challenge
type Solver interface {
	Solve(ctx context.Context, challenge Challenge) (string, error)
}

// Dispatcher routes each challenge to the solver registered for its kind
type Dispatcher struct {
	solvers map[Kind]Solver
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{solvers: make(map[Kind]Solver)}
}

// Register installs solver for kind, replacing any previous one
func (d *Dispatcher) Register(kind Kind, solver Solver) *Dispatcher {
	d.solvers[kind] = solver
	return d
}

// Supports reports whether a solver is registered for kind
func (d *Dispatcher) Supports(kind Kind) bool {
	_, ok := d.solvers[kind]
	return ok
}

// Solve implements Solver
func (d *Dispatcher) Solve(ctx context.Context, challenge Challenge) (string, error) {
	solver, ok := d.solvers[challenge.Kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedChallenge, challenge.Kind)
	}
	return solver.Solve(ctx, challenge)
}
