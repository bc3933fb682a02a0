package weather

// Condition maps a WMO weather code to a coarse condition.
func Condition(code int) string {
	switch {
	case code < 0:
		return "Unknown"
	case code == 0:
		return "Sunny"
	case code <= 3:
		return "Cloudy"
	case code <= 48:
		return "Foggy"
	case code <= 67:
		return "Rainy"
	case code <= 77:
		return "Snowy"
	case code <= 82:
		return "Rainy" // showers
	case code <= 86:
		return "Snowy"
	case code <= 99:
		return "Stormy"
	}
	return "Unknown"
}

var descriptions = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	71: "Slight snow fall",
	73: "Moderate snow fall",
	75: "Heavy snow fall",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

// Description returns the human-readable text for a WMO weather code.
func Description(code int) string {
	if d, ok := descriptions[code]; ok {
		return d
	}
	return "Unknown weather"
}
