package enrich

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// MaxMindGeo resolves client IPs against a MaxMind GeoLite2/GeoIP2 City
// database. Lookups that miss (private addresses, IPs absent from the
// database) return ok=false.
type MaxMindGeo struct {
	reader *geoip2.Reader
}

// OpenMaxMind opens the .mmdb file at path.
func OpenMaxMind(path string) (*MaxMindGeo, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database: %w", err)
	}
	return &MaxMindGeo{reader: reader}, nil
}

func (g *MaxMindGeo) Lookup(ip string) (GeoInfo, bool) {
	addr := net.ParseIP(ip)
	if addr == nil {
		return GeoInfo{}, false
	}

	record, err := g.reader.City(addr)
	if err != nil {
		return GeoInfo{}, false
	}
	if record.Country.IsoCode == "" {
		return GeoInfo{}, false
	}

	info := GeoInfo{
		CountryCode: record.Country.IsoCode,
		CountryName: record.Country.Names["en"],
		City:        record.City.Names["en"],
	}
	if n := len(record.Subdivisions); n > 0 {
		info.Region = record.Subdivisions[n-1].Names["en"]
	}
	return info, true
}

func (g *MaxMindGeo) Close() error {
	return g.reader.Close()
}
