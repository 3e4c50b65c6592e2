package locate

import (
	"context"
	"time"

	"github.com/PabloGalante/resq-agent/internal/domain"
	"github.com/PabloGalante/resq-agent/internal/observability"
)

// Location is a spoken or device location after resolution.
type Location struct {
	Display     string
	Coordinates *domain.Coordinates
	Region      domain.Region
}

// Resolver turns caller-provided locations into display addresses.
// A nil Resolver, or one without a geocoder, only parses text.
type Resolver struct {
	geocoder domain.Geocoder
	timeout  time.Duration
}

func NewResolver(geocoder domain.Geocoder, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Resolver{geocoder: geocoder, timeout: timeout}
}

// Resolve geocodes spoken text. It never fails: on any geocoder problem the
// spoken text is kept and the region is parsed from it.
func (r *Resolver) Resolve(ctx context.Context, text string) Location {
	fallback := Location{Display: text, Region: ParseRegion(text)}
	if r == nil || r.geocoder == nil {
		return fallback
	}

	log := observability.LoggerFromContext(ctx)

	gctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	place, err := r.geocoder.Search(gctx, text)
	if err != nil {
		log.Warn("geocoding failed, keeping spoken location", "error", err)
		return fallback
	}
	if place == nil {
		log.Info("no coordinates found for location", "location", text)
		return fallback
	}

	display := place.DisplayName
	if display == "" {
		display = text
	}
	return Location{
		Display: display,
		Coordinates: &domain.Coordinates{
			Lat:         place.Lat,
			Lon:         place.Lon,
			Source:      domain.SourceGeocoder,
			DisplayName: place.DisplayName,
		},
		Region: regionOr(place.Region, display),
	}
}

// Reverse resolves a device position. ok is false when no address could be found.
func (r *Resolver) Reverse(ctx context.Context, lat, lon float64) (loc Location, ok bool) {
	if r == nil || r.geocoder == nil {
		return Location{}, false
	}

	gctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	place, err := r.geocoder.Reverse(gctx, lat, lon)
	if err != nil || place == nil {
		if err != nil {
			observability.LoggerFromContext(ctx).Warn("reverse geocoding failed", "error", err)
		}
		return Location{}, false
	}
	return Location{
		Display: place.DisplayName,
		Region:  regionOr(place.Region, place.DisplayName),
	}, true
}

func regionOr(region domain.Region, display string) domain.Region {
	if region.City == "" && region.State == "" {
		return ParseRegion(display)
	}
	out := domain.UnknownRegion()
	if region.City != "" {
		out.City = region.City
	}
	if region.District != "" {
		out.District = region.District
	}
	if region.State != "" {
		out.State = region.State
	}
	if region.Country != "" {
		out.Country = region.Country
	}
	return out
}
