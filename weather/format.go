package weather

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	observationRe = regexp.MustCompile(`(\d{6}Z)`)
	windRe        = regexp.MustCompile(`(\d{3})(\d{2,3})G?(\d{0,2})KT`)
	visibilityRe  = regexp.MustCompile(`\s(\d{4})\s`)
	altimeterRe   = regexp.MustCompile(`Q(\d{4})`)
	temperatureRe = regexp.MustCompile(`(M?\d{2})/(M?\d{2})`)
)

// FormatMetar renders a METAR as a spoken-style report. Fields that cannot
// be parsed from the raw text are reported as Unknown.
func FormatMetar(m *Metar) string {
	if m == nil || m.RawText == "" {
		return "No METAR data available."
	}

	observation := "Unknown"
	if g := observationRe.FindStringSubmatch(m.RawText); g != nil {
		observation = g[1]
	}
	windDir, windSpeed, windGust := "Unknown", "Unknown", "N/A"
	if g := windRe.FindStringSubmatch(m.RawText); g != nil {
		windDir, windSpeed = g[1], g[2]
		if g[3] != "" {
			windGust = g[3]
		}
	}
	visibility := "Unknown"
	if g := visibilityRe.FindStringSubmatch(m.RawText); g != nil {
		visibility = g[1]
	}
	altimeter := "Unknown"
	if g := altimeterRe.FindStringSubmatch(m.RawText); g != nil {
		altimeter = g[1]
	}
	temperature, dewpoint := "Unknown", "Unknown"
	if g := temperatureRe.FindStringSubmatch(m.RawText); g != nil {
		temperature = strings.ReplaceAll(g[1], "M", "minus ")
		dewpoint = strings.ReplaceAll(g[2], "M", "minus ")
	}

	// Spell the station letter by letter so TTS reads it as an identifier.
	icaoSpoken := strings.Join(strings.Split(m.ICAO, ""), " ")

	return fmt.Sprintf(
		"METAR for %s at %s Zulu: Wind %s degrees at %s knots, gusts %s. Visibility %s meters. Altimeter %s hectopascals. Temperature %s Celsius, dewpoint %s Celsius.",
		icaoSpoken, observation, windDir, windSpeed, windGust, visibility, altimeter, temperature, dewpoint)
}
