package pixel

import (
	"net/url"
	"strings"

	"github.com/lucalabs/luca-backend/pkg/enums"
)

// clickIDParams maps the ad platforms' landing-page query parameters to the
// platform that minted them. Checked in order, first present wins.
var clickIDParams = []struct {
	param    string
	platform enums.Platform
}{
	{"fbclid", enums.PlatformMeta},
	{"gclid", enums.PlatformGoogle},
	{"ttclid", enums.PlatformTikTok},
	{"sccid", enums.PlatformSnapchat},
}

// TrackingParams is everything attribution-relevant that can be read off a
// landing-page URL.
type TrackingParams struct {
	UTMSource    *string
	UTMMedium    *string
	UTMCampaign  *string
	UTMTerm      *string
	UTMContent   *string
	ClickID      *string
	ClickIDParam *string
	Platform     *enums.Platform
}

// ParseTrackingParams extracts UTM fields and a platform click id from a
// landing-page URL. Unparseable URLs yield empty params, never an error: the
// pixel must keep capturing even when storefronts send garbage.
func ParseTrackingParams(rawURL string) TrackingParams {
	var out TrackingParams
	if rawURL == "" {
		return out
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return out
	}
	query := parsed.Query()

	out.UTMSource = queryValue(query, "utm_source")
	out.UTMMedium = queryValue(query, "utm_medium")
	out.UTMCampaign = queryValue(query, "utm_campaign")
	out.UTMTerm = queryValue(query, "utm_term")
	out.UTMContent = queryValue(query, "utm_content")

	for _, candidate := range clickIDParams {
		if value := queryValue(query, candidate.param); value != nil {
			paramName := candidate.param
			matched := candidate.platform
			out.ClickID = value
			out.ClickIDParam = &paramName
			out.Platform = &matched
			break
		}
	}
	return out
}

// ReferrerDomain returns the lowercased host of a referrer URL, stripped of a
// leading www.
func ReferrerDomain(rawURL string) *string {
	if rawURL == "" {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return nil
	}
	host := strings.ToLower(parsed.Host)
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return nil
	}
	return &host
}

func queryValue(query url.Values, key string) *string {
	value := strings.TrimSpace(query.Get(key))
	if value == "" {
		return nil
	}
	return &value
}
