// Client IP geolocation for access logs.
package server

import (
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/oschwald/maxminddb-golang/v2"
)

// geoIP resolves client addresses to ISO country codes using a MaxMind
// database (GeoLite2-Country or GeoLite2-City).
type geoIP struct {
	db *maxminddb.Reader
}

func openGeoIP(path string) (*geoIP, error) {
	db, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database %s: %w", path, err)
	}
	slog.Info("geoip enabled", "db", path)
	return &geoIP{db: db}, nil
}

// country returns the ISO code for addr, "local" for loopback and private
// ranges, or "" when unknown.
func (g *geoIP) country(addr netip.Addr) string {
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() {
		return "local"
	}
	var rec struct {
		Country struct {
			ISOCode string `maxminddb:"iso_code"`
		} `maxminddb:"country"`
	}
	if err := g.db.Lookup(addr).Decode(&rec); err != nil {
		slog.Debug("geoip lookup", "addr", addr, "err", err)
		return ""
	}
	return rec.Country.ISOCode
}

func (g *geoIP) Close() error {
	return g.db.Close()
}
