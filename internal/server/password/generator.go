package password

import (
	"crypto/rand"
	"math/big"
)

const (
	genUppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	genLowercase = "abcdefghijklmnopqrstuvwxyz"
	genDigits    = "0123456789"
	genSpecials  = "!@#$%^&*"

	temporaryLength = 12
)

// GenerateTemporary returns a 12-character temporary password containing at
// least one uppercase letter, one lowercase letter, one digit, and one
// special character, in unpredictable order (Fisher–Yates over crypto/rand).
func GenerateTemporary() (string, error) {
	pool := genUppercase + genLowercase + genDigits + genSpecials

	chars := make([]byte, 0, temporaryLength)

	// Seed one character from each required class.
	for _, set := range []string{genUppercase, genLowercase, genDigits, genSpecials} {
		c, err := randByte(set)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}

	for len(chars) < temporaryLength {
		c, err := randByte(pool)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}

	// Fisher–Yates so the seeded classes do not sit at fixed positions.
	for i := len(chars) - 1; i > 0; i-- {
		j, err := randInt(i + 1)
		if err != nil {
			return "", err
		}
		chars[i], chars[j] = chars[j], chars[i]
	}

	return string(chars), nil
}

func randByte(set string) (byte, error) {
	i, err := randInt(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

func randInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
