package sources

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/oschwald/geoip2-golang"

	"whoisindex/internal/ingest"
	"whoisindex/internal/netaddr"
	"whoisindex/internal/store"
)

const countryKeyPrefix = "country:"

// CountryLookup resolves the ISO country code of an address.
type CountryLookup interface {
	Country(ip net.IP) (string, error)
}

// GeoLite reads a GeoLite2/GeoIP2 country database.
type GeoLite struct {
	mu     sync.RWMutex
	reader *geoip2.Reader
}

func OpenGeoLite(path string) (*GeoLite, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geolite database %q: %w", path, err)
	}
	return &GeoLite{reader: reader}, nil
}

func (g *GeoLite) Country(ip net.IP) (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.reader == nil {
		return "", errors.New("geolite database closed")
	}
	record, err := g.reader.Country(ip)
	if err != nil {
		return "", err
	}
	return record.Country.IsoCode, nil
}

func (g *GeoLite) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.reader == nil {
		return nil
	}
	err := g.reader.Close()
	g.reader = nil
	return err
}

// WithGeoTags wraps the helper keys of src so every range record is also
// added to "country:<ISO>" using the country of its first address.
func WithGeoTags(src ingest.Source, lookup CountryLookup) ingest.Source {
	if lookup == nil {
		return src
	}
	rangeAttrs := make(map[string]string, len(src.Schemas))
	for pattern, schema := range src.Schemas {
		if schema.RangeAttr != "" {
			rangeAttrs[pattern] = schema.RangeAttr
		}
	}
	src.Helpers = geoTagger{next: src.Helpers, lookup: lookup, rangeAttrs: rangeAttrs}
	return src
}

type geoTagger struct {
	next       ingest.HelperKeyPusher
	lookup     CountryLookup
	rangeAttrs map[string]string
}

func (g geoTagger) PushHelperKeys(ctx context.Context, w store.Store, pattern, recordKey string, rec ingest.Record) error {
	if g.next != nil {
		if err := g.next.PushHelperKeys(ctx, w, pattern, recordKey, rec); err != nil {
			return err
		}
	}

	attr, ok := g.rangeAttrs[pattern]
	if !ok {
		return nil
	}
	r, err := netaddr.ParseInetnum(rec.Attrs.Get(attr), "")
	if err != nil {
		return nil
	}
	iso, err := g.lookup.Country(net.IP(r.First.Addr().AsSlice()))
	if err != nil {
		log.Debug("Country lookup failed", "range", r, "error", err)
		return nil
	}
	if iso == "" {
		return nil
	}
	return w.AddToSet(ctx, countryKeyPrefix+strings.ToUpper(iso), recordKey)
}
