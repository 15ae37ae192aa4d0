package utils

import (
	"fmt"
	"strings"
	"time"

	"estimator/pkg/types"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	NanoidSize     = 32
	nanoidAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	tempAlphabet   = "0123456789abcdefghijklmnopqrstuvwxyz"
	digitAlphabet  = "0123456789"

	// HumanIDDigits is the width of the random suffix on CUS-/EST- ids
	HumanIDDigits = 6
)

func NanoID() string {
	return NanoIDSize(NanoidSize)
}

func NanoIDSize(size int) string {
	if size == 0 {
		size = NanoidSize
	}

	return gonanoid.MustGenerate(nanoidAlphabet, size)
}

// TempID mints a placeholder id of the form temp-<unix millis>-<random>
func TempID(now time.Time) string {
	return fmt.Sprintf("%s%d-%s", types.TemporaryIDPrefix, now.UnixMilli(), gonanoid.MustGenerate(tempAlphabet, 9))
}

func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, types.TemporaryIDPrefix)
}

// HumanID returns prefix followed by a zero padded random number, e.g. EST-004211.
// There is no reservation step, so callers must handle collisions.
func HumanID(prefix string) string {
	return prefix + gonanoid.MustGenerate(digitAlphabet, HumanIDDigits)
}
