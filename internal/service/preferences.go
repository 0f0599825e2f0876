package service

import (
	"regexp"
	"strings"

	"github.com/noah-isme/collab-room-api/internal/models"
)

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// SanitizePreferences deep-merges raw over base. Unknown keys are dropped and
// out-of-range values fall back to the defaults instead of failing.
func SanitizePreferences(base models.Preferences, raw map[string]interface{}) models.Preferences {
	defaults := models.DefaultPreferences()
	out := base
	if out.Accessibility.FontSize == "" {
		out = defaults
	}

	if section, ok := raw["accessibility"].(map[string]interface{}); ok {
		if value, present := section["fontSize"]; present {
			out.Accessibility.FontSize = enumOrDefault(value, defaults.Accessibility.FontSize,
				models.FontSizeSmall, models.FontSizeMedium, models.FontSizeLarge)
		}
		out.Accessibility.HighContrast = boolOr(section["highContrast"], out.Accessibility.HighContrast)
		out.Accessibility.ReducedMotion = boolOr(section["reducedMotion"], out.Accessibility.ReducedMotion)
		out.Accessibility.ScreenReader = boolOr(section["screenReader"], out.Accessibility.ScreenReader)
	}

	if section, ok := raw["appearance"].(map[string]interface{}); ok {
		if value, present := section["theme"]; present {
			out.Appearance.Theme = enumOrDefault(value, defaults.Appearance.Theme,
				models.ThemeLight, models.ThemeDark, models.ThemeAuto)
		}
		if value, present := section["cursorColor"]; present {
			color, _ := value.(string)
			color = strings.TrimSpace(color)
			if hexColorPattern.MatchString(color) {
				out.Appearance.CursorColor = strings.ToUpper(color)
				out.Appearance.CursorColorChosen = true
			} else {
				out.Appearance.CursorColor = defaults.Appearance.CursorColor
				out.Appearance.CursorColorChosen = false
			}
		}
	}

	if section, ok := raw["notifications"].(map[string]interface{}); ok {
		out.Notifications.Sound = boolOr(section["sound"], out.Notifications.Sound)
		out.Notifications.ChatMentions = boolOr(section["chatMentions"], out.Notifications.ChatMentions)
	}

	return out
}

func enumOrDefault(value interface{}, fallback string, allowed ...string) string {
	str, ok := value.(string)
	if !ok {
		return fallback
	}
	str = strings.ToLower(strings.TrimSpace(str))
	for _, candidate := range allowed {
		if str == candidate {
			return str
		}
	}
	return fallback
}

func boolOr(value interface{}, fallback bool) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	case float64:
		return v != 0
	}
	return fallback
}
