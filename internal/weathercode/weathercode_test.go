package weathercode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/avezina/weathervault/internal/weathercode"
)

func TestDescribe_KnownCodes(t *testing.T) {
	assert.Equal(t, "Clear sky", weathercode.Describe(0))
	assert.Equal(t, "Overcast", weathercode.Describe(3))
	assert.Equal(t, "Rain: Slight intensity", weathercode.Describe(61))
	assert.Equal(t, "Thunderstorm with heavy hail", weathercode.Describe(99))
}

func TestDescribe_UnknownCode(t *testing.T) {
	assert.Equal(t, weathercode.UnknownDescription, weathercode.Describe(42))
	assert.Equal(t, weathercode.UnknownDescription, weathercode.Describe(-7))
}

func TestEncode_KnownDescriptions(t *testing.T) {
	assert.Equal(t, 0, weathercode.Encode("Clear sky"))
	assert.Equal(t, 61, weathercode.Encode("Rain: Slight intensity"))
	assert.Equal(t, 95, weathercode.Encode("Thunderstorm: Slight or moderate"))
}

func TestEncode_UnknownDescription(t *testing.T) {
	assert.Equal(t, weathercode.UnknownCode, weathercode.Encode("Slightly rainy"))
	assert.Equal(t, weathercode.UnknownCode, weathercode.Encode(""))
	// Inexact case does not match.
	assert.Equal(t, weathercode.UnknownCode, weathercode.Encode("clear sky"))
}

func TestRoundTrip(t *testing.T) {
	for _, code := range []int{0, 1, 2, 3, 45, 48, 51, 53, 55, 56, 57, 61, 63, 65, 66, 67, 71, 73, 75, 77, 80, 81, 82, 85, 86, 95, 96, 99} {
		desc := weathercode.Describe(code)
		assert.NotEqual(t, weathercode.UnknownDescription, desc, "code %d should be in the table", code)
		assert.Equal(t, code, weathercode.Encode(desc))
	}
}
