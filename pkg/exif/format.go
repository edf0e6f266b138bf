package exif

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DMSToDecimal converts degrees, minutes and seconds to decimal degrees.
// South and west references produce negative values.
func DMSToDecimal(deg, min, sec float64, ref string) float64 {
	dd := deg + min/60 + sec/3600
	switch strings.ToUpper(strings.TrimSpace(ref)) {
	case "S", "W":
		dd = -dd
	}
	return dd
}

// FormatLocation renders coordinates as "35.689500°N, 139.691700°E", followed by
// " | city, state, country" for whichever place names are non-empty.
func FormatLocation(lat, lon float64, hasGPS bool, places ...string) string {
	var out string
	if hasGPS {
		latRef, lonRef := "N", "E"
		if lat < 0 {
			latRef = "S"
		}
		if lon < 0 {
			lonRef = "W"
		}
		out = fmt.Sprintf("%.6f°%s, %.6f°%s", math.Abs(lat), latRef, math.Abs(lon), lonRef)
	}

	var named []string
	for _, p := range places {
		if p = strings.TrimSpace(p); p != "" {
			named = append(named, p)
		}
	}
	if len(named) == 0 {
		return out
	}
	if out != "" {
		out += " | "
	}
	return out + strings.Join(named, ", ")
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatExposure renders an exposure time in seconds: "1/125s" below one
// second, "2s" or "2.5s" otherwise.
func FormatExposure(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	if seconds >= 1 {
		return num(seconds) + "s"
	}
	return fmt.Sprintf("1/%ds", int(math.Round(1/seconds)))
}

// FormatAperture renders an f-number as "f/2.8".
func FormatAperture(f float64) string {
	if f <= 0 {
		return ""
	}
	return "f/" + num(math.Round(f*10)/10)
}

// FormatFocalLength renders a focal length as "50mm".
func FormatFocalLength(mm float64) string {
	if mm <= 0 {
		return ""
	}
	return num(math.Round(mm*10)/10) + "mm"
}

// lensSpec renders a LensSpecification tuple (min/max focal, min/max aperture).
func lensSpec(minF, maxF, minA, maxA float64) string {
	if minF <= 0 || maxF <= 0 {
		return ""
	}
	s := num(minF) + "mm"
	if minF != maxF {
		s = num(minF) + "-" + num(maxF) + "mm"
	}
	if minA > 0 && maxA > 0 {
		if minA == maxA {
			s += " f/" + num(minA)
		} else {
			s += " f/" + num(minA) + "-" + num(maxA)
		}
	}
	return s
}

// usableLens rejects bare serial numbers some bodies store in lens fields.
func usableLens(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	_, err := strconv.ParseUint(s, 10, 64)
	return err != nil
}
