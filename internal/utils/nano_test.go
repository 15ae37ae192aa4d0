package utils

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHumanID_Format(t *testing.T) {
	re := regexp.MustCompile(`^EST-\d{6}$`)
	for range 50 {
		assert.Regexp(t, re, HumanID("EST-"))
	}
}

func TestTempID_Format(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	id := TempID(now)

	assert.Regexp(t, regexp.MustCompile(`^temp-1700000000123-[0-9a-z]{9}$`), id)
	assert.True(t, IsTemporaryID(id))
	assert.False(t, IsTemporaryID("EST-000123"))
}

func TestNanoIDSize_DefaultsWhenZero(t *testing.T) {
	assert.Len(t, NanoIDSize(0), NanoidSize)
	assert.Len(t, NanoIDSize(8), 8)
}
