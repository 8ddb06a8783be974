package session

import (
	"crypto/rand"

	"interviewhub/pkg/types"
)

// CodeAlphabet leaves out characters that read alike (0/O, 1/I).
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeGenerator produces candidate session codes. The store retries on
// collision, so a generator only has to be random, not unique.
type CodeGenerator func() (string, error)

// RandomCode draws SessionCodeLength characters from CodeAlphabet.
// len(CodeAlphabet) divides 256, so the modulo keeps the draw uniform.
func RandomCode() (string, error) {
	b := make([]byte, types.SessionCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	code := make([]byte, types.SessionCodeLength)
	for i := range code {
		code[i] = CodeAlphabet[int(b[i])%len(CodeAlphabet)]
	}
	return string(code), nil
}
