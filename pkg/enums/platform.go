package enums

import "fmt"

// Platform identifies a connectable commerce or ads provider.
type Platform string

const (
	PlatformSalla    Platform = "salla"
	PlatformShopify  Platform = "shopify"
	PlatformMeta     Platform = "meta"
	PlatformGoogle   Platform = "google"
	PlatformTikTok   Platform = "tiktok"
	PlatformSnapchat Platform = "snapchat"
)

var validPlatforms = []Platform{
	PlatformSalla,
	PlatformShopify,
	PlatformMeta,
	PlatformGoogle,
	PlatformTikTok,
	PlatformSnapchat,
}

// String implements fmt.Stringer.
func (p Platform) String() string {
	return string(p)
}

// IsValid reports whether the value is a known Platform.
func (p Platform) IsValid() bool {
	for _, candidate := range validPlatforms {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsStore reports whether the platform delivers order webhooks.
func (p Platform) IsStore() bool {
	return p == PlatformSalla || p == PlatformShopify
}

// IsAds reports whether the platform exposes an ad-spend reporting API.
func (p Platform) IsAds() bool {
	switch p {
	case PlatformMeta, PlatformGoogle, PlatformTikTok, PlatformSnapchat:
		return true
	}
	return false
}

// ParsePlatform converts raw input into a Platform.
func ParsePlatform(value string) (Platform, error) {
	for _, candidate := range validPlatforms {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid platform %q", value)
}
