// Package weathercode translates WMO weather interpretation codes, as used by
// the Open-Meteo API, into human-readable condition phrases and back.
package weathercode

// UnknownDescription is returned by Describe for codes outside the table.
const UnknownDescription = "Unknown weather code"

// UnknownCode is returned by Encode for descriptions outside the table.
const UnknownCode = -1

var descriptions = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Drizzle: Light intensity",
	53: "Drizzle: Moderate intensity",
	55: "Drizzle: Dense intensity",
	56: "Freezing drizzle: Light intensity",
	57: "Freezing drizzle: Dense intensity",
	61: "Rain: Slight intensity",
	63: "Rain: Moderate intensity",
	65: "Rain: Heavy intensity",
	66: "Freezing rain: Light intensity",
	67: "Freezing rain: Heavy intensity",
	71: "Snow fall: Slight intensity",
	73: "Snow fall: Moderate intensity",
	75: "Snow fall: Heavy intensity",
	77: "Snow grains",
	80: "Rain showers: Slight intensity",
	81: "Rain showers: Moderate intensity",
	82: "Rain showers: Violent intensity",
	85: "Snow showers: Slight intensity",
	86: "Snow showers: Heavy intensity",
	95: "Thunderstorm: Slight or moderate",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

var codes = func() map[string]int {
	m := make(map[string]int, len(descriptions))
	for code, desc := range descriptions {
		m[desc] = code
	}
	return m
}()

// Describe returns the condition phrase for a WMO weather code.
// Unrecognized codes return UnknownDescription.
func Describe(code int) string {
	if desc, ok := descriptions[code]; ok {
		return desc
	}
	return UnknownDescription
}

// Encode is the inverse of Describe: it returns the WMO code for an exact
// condition phrase, or UnknownCode when the phrase is not in the table.
func Encode(description string) int {
	if code, ok := codes[description]; ok {
		return code
	}
	return UnknownCode
}
