// Package geoip resolves a reporter's country from their IP address.
package geoip

import (
	"encoding/json"
	"fmt"
	"net"
	"os"

	"github.com/oschwald/geoip2-golang"
)

// Resolver maps IPs to ISO country codes, using a MaxMind database when one
// is available and a JSON list of CIDR ranges otherwise.
type Resolver struct {
	db     *geoip2.Reader
	ranges []cidrCountry
}

type cidrCountry struct {
	net     *net.IPNet
	country string
}

// Open loads the database at path. A path that is not a MaxMind file is read
// as JSON: [{"net": "10.0.0.0/8", "country": "US"}, ...].
func Open(path string) (*Resolver, error) {
	db, err := geoip2.Open(path)
	if err == nil {
		return &Resolver{db: db}, nil
	}
	data, rerr := os.ReadFile(path)
	if rerr != nil {
		return nil, fmt.Errorf("open geoip %s: %w", path, err)
	}
	return parseRanges(data)
}

func parseRanges(data []byte) (*Resolver, error) {
	var entries []struct {
		Net     string `json:"net"`
		Country string `json:"country"`
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse geoip ranges: %w", err)
	}
	r := &Resolver{}
	for _, e := range entries {
		_, n, err := net.ParseCIDR(e.Net)
		if err != nil {
			continue
		}
		r.ranges = append(r.ranges, cidrCountry{net: n, country: e.Country})
	}
	return r, nil
}

// Country returns the ISO code for ip, or "" when unknown. A nil resolver
// always returns "".
func (r *Resolver) Country(ip net.IP) string {
	if r == nil || ip == nil {
		return ""
	}
	if r.db != nil {
		if rec, err := r.db.Country(ip); err == nil {
			return rec.Country.IsoCode
		}
	}
	for _, c := range r.ranges {
		if c.net.Contains(ip) {
			return c.country
		}
	}
	return ""
}

// Close releases the database.
func (r *Resolver) Close() error {
	if r != nil && r.db != nil {
		return r.db.Close()
	}
	return nil
}
