package topology

import (
	"errors"
	"fmt"
	"sort"
)

// There is a naming collision between the LCO scheduler and the reservation
// calendar: an LCO "site" is a physical site-group (WEMA) hosting several
// telescopes, while the calendar uses one logical site code per telescope.
// For example the WEMA "mrc" hosts telescopes 0m31 and 0m61, which the
// calendar knows as "mrc1" and "mrc2".

var (
	// ErrUnknownSite indicates a logical site code with no configured WEMA/telescope.
	ErrUnknownSite = errors.New("unknown logical site")
	// ErrUnknownTelescope indicates a WEMA/telescope pair with no configured logical site.
	ErrUnknownTelescope = errors.New("unknown telescope")
)

// WemaTelescope identifies one telescope within a WEMA.
type WemaTelescope struct {
	Wema      string
	Telescope string
}

// Registry is the immutable site topology: WEMA -> telescope -> logical site,
// with the reverse lookup precomputed. Built once at startup from
// configuration and never mutated.
type Registry struct {
	siteByTelescope map[string]map[string]string
	locationBySite  map[string]WemaTelescope
	sitesByWema     map[string][]string
	sites           []string
}

// NewRegistry builds a Registry from the configured WEMA -> telescope -> site
// mapping. Duplicate logical site codes are rejected.
func NewRegistry(wemas map[string]map[string]string) (*Registry, error) {
	r := &Registry{
		siteByTelescope: make(map[string]map[string]string, len(wemas)),
		locationBySite:  make(map[string]WemaTelescope),
		sitesByWema:     make(map[string][]string, len(wemas)),
	}

	for wema, telescopes := range wemas {
		r.siteByTelescope[wema] = make(map[string]string, len(telescopes))
		for telescope, site := range telescopes {
			if prev, ok := r.locationBySite[site]; ok {
				return nil, fmt.Errorf("logical site %q configured for both %s/%s and %s/%s",
					site, prev.Wema, prev.Telescope, wema, telescope)
			}
			r.siteByTelescope[wema][telescope] = site
			r.locationBySite[site] = WemaTelescope{Wema: wema, Telescope: telescope}
			r.sitesByWema[wema] = append(r.sitesByWema[wema], site)
			r.sites = append(r.sites, site)
		}
		sort.Strings(r.sitesByWema[wema])
	}
	sort.Strings(r.sites)

	return r, nil
}

// Site resolves a WEMA/telescope pair to its logical site code.
func (r *Registry) Site(wema, telescope string) (string, error) {
	telescopes, ok := r.siteByTelescope[wema]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrUnknownTelescope, wema, telescope)
	}
	site, ok := telescopes[telescope]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrUnknownTelescope, wema, telescope)
	}
	return site, nil
}

// WemaTelescope resolves a logical site code to its WEMA and telescope id.
func (r *Registry) WemaTelescope(site string) (string, string, error) {
	loc, ok := r.locationBySite[site]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownSite, site)
	}
	return loc.Wema, loc.Telescope, nil
}

// Knows reports whether the logical site is configured.
func (r *Registry) Knows(site string) bool {
	_, ok := r.locationBySite[site]
	return ok
}

// SitesForWema returns the logical sites hosted at a WEMA, sorted.
func (r *Registry) SitesForWema(wema string) []string {
	sites := r.sitesByWema[wema]
	out := make([]string, len(sites))
	copy(out, sites)
	return out
}

// Sites returns every configured logical site, sorted.
func (r *Registry) Sites() []string {
	out := make([]string, len(r.sites))
	copy(out, r.sites)
	return out
}
