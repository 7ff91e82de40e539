// internal/requestinfo/requestinfo.go
//
// Per-request client metadata: user-agent fingerprint, client IP, and a
// best-effort country and city.
//
// Context
// -------
// The access log records whether a request came from a crawler and roughly
// where it came from.  Parsing happens once
// in Enrich; everything downstream reads the inert *Info from the request
// context.  The struct holds no handles, so it is safe to log or encode.
//
// Dependencies
//   - github.com/avct/uasurfer          (UA parsing)
//   - github.com/oschwald/geoip2-golang (MaxMind lookup, optional)
//
// Notes
// -----
//   - Oxford commas, two spaces after periods.  No em dash.
package requestinfo

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/avct/uasurfer"
	"github.com/oschwald/geoip2-golang"
)

// UA holds the parsed user-agent properties.
type UA struct {
	Browser     string `json:"browser"`      // "Chrome", "Firefox", "Safari", ...
	Version     string `json:"version"`      // "124.0.6367"
	OS          string `json:"os"`           // "macOS", "Windows", "Android", ...
	Device      string `json:"device"`       // "Desktop", "Phone", "Tablet", ...
	IsBot       bool   `json:"bot"`          // crawler signature matched
	PrimaryLang string `json:"primary_lang"` // first Accept-Language tag
}

// Geo holds IP-based location hints.  Fields are empty when no database is
// configured or the address has no match.
type Geo struct {
	IP         net.IP `json:"ip"`
	CountryISO string `json:"country,omitempty"`
	City       string `json:"city,omitempty"`
}

// Info is what Enrich stores in the request context.
type Info struct {
	UA  UA  `json:"ua"`
	Geo Geo `json:"geo"`
}

type ctxKey struct{}

// WithInfo returns ctx carrying info.
func WithInfo(ctx context.Context, info *Info) context.Context {
	return context.WithValue(ctx, ctxKey{}, info)
}

// FromContext returns the *Info stored by Enrich, or nil.
func FromContext(ctx context.Context) *Info {
	v, _ := ctx.Value(ctxKey{}).(*Info)
	return v
}

// IsBot reports whether the request in ctx was made by a crawler.
func IsBot(ctx context.Context) bool {
	info := FromContext(ctx)
	return info != nil && info.UA.IsBot
}

/*──────────────────────────── geolocation ─────────────────────────────────*/

// Locator resolves an address to a Geo.
type Locator interface {
	Locate(ip net.IP) Geo
}

// GeoDB is a MaxMind GeoLite2-City reader.  Safe for concurrent reads.
type GeoDB struct {
	reader *geoip2.Reader
}

// OpenGeo opens the GeoLite2-City database at path.
func OpenGeo(path string) (*GeoDB, error) {
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip db %s: %w", path, err)
	}
	return &GeoDB{reader: r}, nil
}

// Locate never fails; misses leave the location fields empty.
func (g *GeoDB) Locate(ip net.IP) Geo {
	out := Geo{IP: ip}
	if g == nil || ip == nil {
		return out
	}
	rec, err := g.reader.City(ip)
	if err != nil {
		return out
	}
	out.CountryISO = rec.Country.IsoCode
	out.City = rec.City.Names["en"]
	return out
}

// Close releases the database.
func (g *GeoDB) Close() error {
	if g == nil {
		return nil
	}
	return g.reader.Close()
}

/*──────────────────────────── user agent ──────────────────────────────────*/

// ParseUA converts a raw User-Agent and Accept-Language pair into UA.
func ParseUA(header, acceptLang string) UA {
	u := uasurfer.Parse(header)

	osName := strings.TrimPrefix(u.OS.Name.String(), "OS")
	if osName == "MacOSX" {
		osName = "macOS"
	}
	return UA{
		Browser:     strings.TrimPrefix(u.Browser.Name.String(), "Browser"),
		Version:     version(u.Browser.Version),
		OS:          osName,
		Device:      device(u.DeviceType),
		IsBot:       u.IsBot(),
		PrimaryLang: primaryLang(acceptLang),
	}
}

// version renders 17.0.0 as "17", 17.3.0 as "17.3", and 17.3.1 as
// "17.3.1".  An all-zero version is empty.
func version(v uasurfer.Version) string {
	switch {
	case v.Major == 0 && v.Minor == 0 && v.Patch == 0:
		return ""
	case v.Patch != 0:
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	case v.Minor != 0:
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	}
	return strconv.Itoa(v.Major)
}

func device(dt uasurfer.DeviceType) string {
	switch dt {
	case uasurfer.DeviceComputer:
		return "Desktop"
	case uasurfer.DevicePhone:
		return "Phone"
	case uasurfer.DeviceTablet:
		return "Tablet"
	case uasurfer.DeviceConsole:
		return "Console"
	case uasurfer.DeviceWearable:
		return "Wearable"
	case uasurfer.DeviceTV:
		return "TV"
	}
	return "Unknown"
}

// primaryLang extracts the first language tag before any ";q=" weight.
func primaryLang(al string) string {
	tag, _, _ := strings.Cut(al, ",")
	tag, _, _ = strings.Cut(tag, ";")
	return strings.TrimSpace(tag)
}
