package tracker

import (
	"fmt"
	"strings"

	"readtrack-backend/internal/models"
)

// ParseDevice classifies a user agent as Mobile, Tablet, Bot or Desktop.
func ParseDevice(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return "Tablet"
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone"):
		return "Mobile"
	case strings.Contains(ua, "bot") || strings.Contains(ua, "crawler") || strings.Contains(ua, "spider"):
		return "Bot"
	}
	return "Desktop"
}

// ParseBrowser extracts the browser family from a user agent.
func ParseBrowser(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "edg/") || strings.Contains(ua, "edge"):
		return "Edge"
	case strings.Contains(ua, "opr/") || strings.Contains(ua, "opera"):
		return "Opera"
	case strings.Contains(ua, "chrome"):
		return "Chrome"
	case strings.Contains(ua, "firefox"):
		return "Firefox"
	case strings.Contains(ua, "safari"):
		return "Safari"
	case strings.Contains(ua, "bot") || strings.Contains(ua, "crawler"):
		return "Bot"
	}
	return "Other"
}

func screenSize(env models.Environment) string {
	if env.ViewportWidth <= 0 || env.ViewportHeight <= 0 {
		return "unknown"
	}
	return fmt.Sprintf("%dx%d", env.ViewportWidth, env.ViewportHeight)
}
