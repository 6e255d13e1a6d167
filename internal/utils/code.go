package utils

import (
    "crypto/rand"
    "math/big"
)

// codeAlphabet holds the characters used in human-shareable codes.
const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// RandomCode returns an n character upper-case base36 code drawn from
// crypto/rand, e.g. "K3X9Q0ZD".  It is used for party join codes and ticket
// access codes.
func RandomCode(n int) (string, error) {
    if n <= 0 {
        return "", nil
    }
    max := big.NewInt(int64(len(codeAlphabet)))
    out := make([]byte, n)
    for i := range out {
        v, err := rand.Int(rand.Reader, max)
        if err != nil {
            return "", err
        }
        out[i] = codeAlphabet[v.Int64()]
    }
    return string(out), nil
}

// IsCode reports whether s is a non-empty string made only of code characters.
func IsCode(s string) bool {
    if s == "" {
        return false
    }
    for i := 0; i < len(s); i++ {
        c := s[i]
        if (c < '0' || c > '9') && (c < 'A' || c > 'Z') {
            return false
        }
    }
    return true
}
