package validation

import (
	"fmt"
	"strings"
)

const (
	maxBioLength       = 500
	maxCityLength      = 100
	maxGroupNameLength = 60
	maxContentLength   = 5000
	maxTitleLength     = 200
)

// ValidateBio checks profile bio length.
func ValidateBio(bio string) error {
	if len(bio) > maxBioLength {
		return fmt.Errorf("bio must not exceed %d characters", maxBioLength)
	}
	return nil
}

// ValidateCity checks a city name.
func ValidateCity(city string) error {
	if len(city) > maxCityLength {
		return fmt.Errorf("city must not exceed %d characters", maxCityLength)
	}
	return nil
}

// ValidateCoordinates checks a lat/lng pair.
func ValidateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90")
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude must be between -180 and 180")
	}
	return nil
}

// ValidateGroupName checks a group name.
func ValidateGroupName(name string) error {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) < 3 {
		return fmt.Errorf("group name must be at least 3 characters long")
	}
	if len(trimmed) > maxGroupNameLength {
		return fmt.Errorf("group name must not exceed %d characters", maxGroupNameLength)
	}
	return nil
}

// ValidateTitle checks a post title.
func ValidateTitle(title string) error {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return fmt.Errorf("title is required")
	}
	if len(trimmed) > maxTitleLength {
		return fmt.Errorf("title must not exceed %d characters", maxTitleLength)
	}
	return nil
}

// ValidateContent checks free-form text bodies (posts, replies, messages).
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("content is required")
	}
	if len(content) > maxContentLength {
		return fmt.Errorf("content must not exceed %d characters", maxContentLength)
	}
	return nil
}
