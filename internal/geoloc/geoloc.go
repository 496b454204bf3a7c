// Package geoloc resolves client IPs to coordinates and countries using a
// MaxMind city database.
package geoloc

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/oschwald/geoip2-golang"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotLoaded is returned by Lookup before Load has succeeded.
	ErrNotLoaded = errors.New("geoloc: database not loaded")
	// ErrNoResult is returned for addresses the database cannot place.
	ErrNoResult = errors.New("geoloc: no result")
)

// UnknownCountry is reported when the database has no country for an IP.
const UnknownCountry = "XX"

// Result is a resolved location.
type Result struct {
	Longitude   float64
	Latitude    float64
	CountryCode string
}

// Database is a loaded MaxMind reader. The zero value is unloaded.
type Database struct {
	mu     sync.RWMutex
	reader *geoip2.Reader
	path   string
}

// New returns an unloaded database.
func New() *Database {
	return &Database{}
}

// Load opens the mmdb file at path, replacing any previously loaded file.
func (d *Database) Load(path string) error {
	reader, err := geoip2.Open(path)
	if err != nil {
		return fmt.Errorf("open geolocation database %s: %w", path, err)
	}

	d.mu.Lock()
	old := d.reader
	d.reader = reader
	d.path = path
	d.mu.Unlock()

	if old != nil {
		old.Close()
	}
	log.Info().Str("path", path).Msg("geolocation database loaded")
	return nil
}

// Loaded reports whether a database is open.
func (d *Database) Loaded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.reader != nil
}

// Close unloads the database. Lookups afterwards fail with ErrNotLoaded.
func (d *Database) Close() error {
	d.mu.Lock()
	reader := d.reader
	d.reader = nil
	d.mu.Unlock()

	if reader == nil {
		return nil
	}
	return reader.Close()
}

// Lookup resolves ip. Private, loopback and unparseable addresses yield
// ErrNoResult without touching the database.
func (d *Database) Lookup(ip string) (*Result, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.reader == nil {
		return nil, ErrNotLoaded
	}

	addr := net.ParseIP(ip)
	if addr == nil || addr.IsPrivate() || addr.IsLoopback() || addr.IsUnspecified() {
		return nil, fmt.Errorf("%w for %q", ErrNoResult, ip)
	}

	city, err := d.reader.City(addr)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", ip, err)
	}

	res := &Result{
		Longitude:   city.Location.Longitude,
		Latitude:    city.Location.Latitude,
		CountryCode: city.Country.IsoCode,
	}
	if res.CountryCode == "" {
		res.CountryCode = UnknownCountry
	}
	return res, nil
}
