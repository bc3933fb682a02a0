package weather

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kasuganosora/magicwardrobe/cache"
)

// ErrNoLocation is returned when no coordinates are known.
var ErrNoLocation = errors.New("weather: no location available")

// ErrInvalidCoords is returned for coordinates outside the valid range.
var ErrInvalidCoords = errors.New("weather: invalid coordinates")

// Coords is a latitude/longitude pair in degrees.
type Coords struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c Coords) Validate() error {
	if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: %g,%g", ErrInvalidCoords, c.Lat, c.Lon)
	}
	return nil
}

// Locator resolves where the user is.
type Locator interface {
	Locate(ctx context.Context) (Coords, error)
}

// Static is a fixed location, typically from configuration.
type Static Coords

func (s Static) Locate(context.Context) (Coords, error) { return Coords(s), nil }

// Chain tries each locator in order and returns the first hit.
type Chain []Locator

func (ch Chain) Locate(ctx context.Context) (Coords, error) {
	for _, l := range ch {
		if l == nil {
			continue
		}
		c, err := l.Locate(ctx)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrNoLocation) {
			return Coords{}, err
		}
	}
	return Coords{}, ErrNoLocation
}

// SessionLocator stores the coordinates each device last reported.
type SessionLocator struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewSessionLocator creates a SessionLocator; ttl <= 0 keeps locations
// until overwritten.
func NewSessionLocator(c cache.Cache, ttl time.Duration) *SessionLocator {
	return &SessionLocator{cache: c, ttl: ttl}
}

func locationKey(accountID int64) string {
	return "weather:loc:" + strconv.FormatInt(accountID, 10)
}

// Save records the account's current location.
func (s *SessionLocator) Save(ctx context.Context, accountID int64, c Coords) error {
	if err := c.Validate(); err != nil {
		return err
	}
	val := strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lon, 'f', -1, 64)
	return s.cache.Set(ctx, locationKey(accountID), val, s.ttl)
}

// Get returns the account's last reported location.
func (s *SessionLocator) Get(ctx context.Context, accountID int64) (Coords, error) {
	raw, err := s.cache.Get(ctx, locationKey(accountID))
	if err != nil {
		if cache.IsNotFound(err) {
			return Coords{}, ErrNoLocation
		}
		return Coords{}, err
	}
	latS, lonS, ok := strings.Cut(raw, ",")
	if !ok {
		return Coords{}, ErrNoLocation
	}
	lat, err1 := strconv.ParseFloat(latS, 64)
	lon, err2 := strconv.ParseFloat(lonS, 64)
	if err1 != nil || err2 != nil {
		return Coords{}, ErrNoLocation
	}
	return Coords{Lat: lat, Lon: lon}, nil
}

// For returns a Locator bound to one account.
func (s *SessionLocator) For(accountID int64) Locator {
	return accountLocator{s: s, id: accountID}
}

type accountLocator struct {
	s  *SessionLocator
	id int64
}

func (a accountLocator) Locate(ctx context.Context) (Coords, error) { return a.s.Get(ctx, a.id) }

// Lookup resolves the current location to a weather phrase.
type Lookup struct {
	loc    Locator
	client *Client
}

// NewLookup creates a Lookup.
func NewLookup(client *Client, loc Locator) *Lookup {
	return &Lookup{loc: loc, client: client}
}

// Resolve returns e.g. "Partly cloudy, 64.2°F".
func (l *Lookup) Resolve(ctx context.Context) (string, error) {
	if l.loc == nil {
		return "", ErrNoLocation
	}
	c, err := l.loc.Locate(ctx)
	if err != nil {
		return "", err
	}
	r, err := l.client.Current(ctx, c.Lat, c.Lon)
	if err != nil {
		return "", err
	}
	return r.String(), nil
}
