package navmap

import "fmt"

// Aviation unit conversion factors.
const (
	metersPerSecToKnots = 1.943844
	metersPerSecToFpm   = 196.85
	metersToFeet        = 3.28084
	hpaToInHg           = 33.8639
)

// Knots converts a ground speed in meters per second.
func Knots(ms float64) float64 { return ms * metersPerSecToKnots }

// Fpm converts a vertical speed in meters per second to feet per minute.
func Fpm(ms float64) float64 { return ms * metersPerSecToFpm }

// Feet converts meters.
func Feet(m float64) float64 { return m * metersToFeet }

// Phase labels derived from simulator state.
const (
	PhaseParked     = "Parked"
	PhaseTaxiing    = "Taxiing"
	PhaseTakingOff  = "Taking Off"
	PhaseLanding    = "Landing"
	PhaseGroundRoll = "Ground Roll"
	PhaseClimbing   = "Climbing"
	PhaseDescending = "Descending"
	PhaseCruise     = "Cruise"
	PhaseUnknown    = "Unknown"
)

// FlightPhase classifies the current phase from altitude AGL, vertical speed
// and ground speed.
func FlightPhase(info *SimInfo) string {
	if info == nil {
		return PhaseUnknown
	}
	aglFt := info.AltitudeAboveGround * metersToFeet
	vsFpm := info.VerticalSpeed * metersPerSecToFpm
	gsKts := info.GroundSpeed * metersPerSecToKnots

	switch {
	case aglFt < 1:
		if gsKts < 1 {
			return PhaseParked
		}
		return PhaseTaxiing
	case aglFt < 50:
		if vsFpm > 100 {
			return PhaseTakingOff
		}
		if vsFpm < -100 {
			return PhaseLanding
		}
		return PhaseGroundRoll
	default:
		if vsFpm > 500 {
			return PhaseClimbing
		}
		if vsFpm < -500 {
			return PhaseDescending
		}
		return PhaseCruise
	}
}

// FormatFlightData renders the full status report line for chat.
func FormatFlightData(info *SimInfo) string {
	if info == nil {
		return "Unable to retrieve flight data."
	}
	altFt := int(info.IndicatedAltitude + 0.5)
	aglFt := int(info.AltitudeAboveGround*metersToFeet + 0.5)
	gsKts := int(info.GroundSpeed*metersPerSecToKnots + 0.5)
	if gsKts < 0 {
		gsKts = 0
	}
	tasKts := int(info.TrueAirspeed*metersPerSecToKnots + 0.5)
	if tasKts < 0 {
		tasKts = 0
	}
	vsFpm := int(info.VerticalSpeed * metersPerSecToFpm)
	windKts := int(info.WindSpeed*metersPerSecToKnots + 0.5)

	return fmt.Sprintf(
		"Flight Status Report: %s | Altitude: %d ft MSL (%d ft AGL) | Speed: %d kts GS, %d kts TAS | Heading: %.1f° | Position: %.4f°, %.4f° | Wind: %.0f° at %d kts | Vertical Speed: %+d fpm",
		FlightPhase(info), altFt, aglFt, gsKts, tasKts, info.Heading,
		info.Position.Lat, info.Position.Lon, info.WindDirection, windKts, vsFpm)
}

// FormatBrief renders the short status line.
func FormatBrief(info *SimInfo) string {
	if info == nil {
		return "Unable to retrieve status."
	}
	altFt := int(info.IndicatedAltitude + 0.5)
	gsKts := int(info.GroundSpeed*metersPerSecToKnots + 0.5)
	if gsKts < 0 {
		gsKts = 0
	}
	return fmt.Sprintf("%s: %d ft, %d knots", FlightPhase(info), altFt, gsKts)
}

// FormatWeather renders local simulator weather.
func FormatWeather(info *SimInfo) string {
	if info == nil {
		return "Unable to retrieve weather data."
	}
	windKts := int(info.WindSpeed*metersPerSecToKnots + 0.5)
	pressureInHg := info.SeaLevelPressure / hpaToInHg
	return fmt.Sprintf("Wind: %03.0f° at %d knots | Pressure: %.2f inHg",
		info.WindDirection, windKts, pressureInHg)
}

// FormatAirport renders an airport lookup result.
func FormatAirport(a *AirportInfo) string {
	if a == nil {
		return "Unable to retrieve airport data."
	}
	return fmt.Sprintf("Airport %s: %s, Elevation: %.0f feet", a.Ident, a.Name, a.Elevation)
}

// FormatLocation renders just the aircraft position.
func FormatLocation(info *SimInfo) string {
	if info == nil {
		return "Unable to retrieve position."
	}
	return fmt.Sprintf("Current position: %.4f°, %.4f° heading %.0f°",
		info.Position.Lat, info.Position.Lon, info.Heading)
}
