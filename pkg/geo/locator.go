package geo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/nimeshabuddhika/resilient-risk-pipeline/pkg"
	"github.com/oschwald/geoip2-golang"
)

var (
	ErrNoPublicIP      = errors.New("could not determine a valid public IP address")
	ErrLocationMissing = errors.New("location data missing from lookup")
)

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Country   string  `json:"country"`
	City      string  `json:"city"`
}

// Locator resolves a public IP address to coordinates.
type Locator interface {
	Locate(ctx context.Context, ip string) (Location, error)
}

// cityReader is the subset of *geoip2.Reader used for lookups.
type cityReader interface {
	City(ip net.IP) (*geoip2.City, error)
}

type MaxMindLocator struct {
	reader cityReader
}

// OpenMaxMind opens a GeoLite2/GeoIP2 City database.
func OpenMaxMind(path string) (*MaxMindLocator, func(), error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open city db %s: %w", path, err)
	}
	return &MaxMindLocator{reader: reader}, func() { _ = reader.Close() }, nil
}

func NewMaxMindLocator(reader cityReader) *MaxMindLocator {
	return &MaxMindLocator{reader: reader}
}

func (m *MaxMindLocator) Locate(_ context.Context, ip string) (Location, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Location{}, ErrNoPublicIP
	}
	city, err := m.reader.City(parsed)
	if err != nil {
		return Location{}, fmt.Errorf("city lookup %s: %w", ip, err)
	}
	if city == nil || (city.Location.Latitude == 0 && city.Location.Longitude == 0) {
		return Location{}, ErrLocationMissing
	}
	loc := Location{
		Latitude:  city.Location.Latitude,
		Longitude: city.Location.Longitude,
		Country:   city.Country.IsoCode,
		City:      city.City.Names["en"],
	}
	if loc.Country == "" {
		loc.Country = pkg.UnknownSource
	}
	if loc.City == "" {
		loc.City = pkg.UnknownSource
	}
	return loc, nil
}

// ClientIP picks the caller's public address: the first X-Forwarded-For entry, then X-Real-Ip.
// Loopback, private and unparseable addresses are rejected.
func ClientIP(h http.Header) (string, error) {
	candidates := make([]string, 0, 2)
	if fwd := h.Get(pkg.HeaderForwardedFor); fwd != "" {
		candidates = append(candidates, strings.TrimSpace(strings.Split(fwd, ",")[0]))
	}
	if realIP := h.Get(pkg.HeaderRealIp); realIP != "" {
		candidates = append(candidates, strings.TrimSpace(realIP))
	}
	for _, c := range candidates {
		if IsPublic(c) {
			return c, nil
		}
	}
	return "", ErrNoPublicIP
}

func IsPublic(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return !(parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() ||
		parsed.IsLinkLocalUnicast() || parsed.IsLinkLocalMulticast())
}
