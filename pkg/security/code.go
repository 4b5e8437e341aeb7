package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// CodeLength is the number of digits in a confirmation code.
const CodeLength = 6

var codeSpace = big.NewInt(1_000_000)

// CodeGenerator produces confirmation codes for pending signups.
type CodeGenerator interface {
	Generate() (string, error)
}

type randomCodes struct{}

func NewCodeGenerator() CodeGenerator {
	return randomCodes{}
}

// Generate returns a zero-padded six digit code.
func (randomCodes) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate confirmation code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}

// FixedCode always returns the same code. Used by tests and local tooling.
type FixedCode string

func (f FixedCode) Generate() (string, error) {
	return string(f), nil
}
