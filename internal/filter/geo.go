package filter

import (
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// GeoEnricher appends a "country=XX" suffix to each line derived from the
// leading IP address, when the MaxMind database resolves one. Lines whose
// leading token is not a parseable IP are passed through unchanged. Lookup
// failures are not filter errors: a log line missing geo data is not a
// malformed line, so the original text is always what it falls back to.
type GeoEnricher struct {
	db *geoip2.Reader
}

// NewGeoEnricher opens the MaxMind GeoLite2 database at path. Callers
// should defer Close.
func NewGeoEnricher(path string) (*GeoEnricher, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &GeoEnricher{db: db}, nil
}

// Close releases the underlying database handle.
func (g *GeoEnricher) Close() error {
	return g.db.Close()
}

// Filter implements filter.Filter, suitable for passing as reader.Config.Filter.
func (g *GeoEnricher) Filter(line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return line, nil
	}
	ip := net.ParseIP(fields[0])
	if ip == nil {
		return line, nil
	}
	record, err := g.db.Country(ip)
	if err != nil || record.Country.IsoCode == "" {
		return line, nil
	}
	return line + " country=" + record.Country.IsoCode, nil
}
