package metadata

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Fantasim/nanas/internal/config"
)

// videoIDPatterns match the supported TikTok URL shapes. The first capture
// group is the video (or short-link) identifier.
var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`tiktok\.com/@[\w.-]+/video/(\d+)`),
	regexp.MustCompile(`vm\.tiktok\.com/(\w+)`),
	regexp.MustCompile(`tiktok\.com/t/(\w+)`),
	regexp.MustCompile(`vt\.tiktok\.com/(\w+)`),
}

// ExtractVideoID returns the video identifier embedded in a TikTok URL.
// Unrecognized URLs are rejected; no identifier is invented.
func ExtractVideoID(rawURL string) (string, error) {
	u := strings.TrimSpace(rawURL)
	if u == "" {
		return "", fmt.Errorf("%w: empty content URL", config.ErrInvalidArgument)
	}

	for _, re := range videoIDPatterns {
		if m := re.FindStringSubmatch(u); m != nil {
			return m[1], nil
		}
	}

	return "", fmt.Errorf("%w: unrecognized content URL %q", config.ErrInvalidArgument, rawURL)
}
