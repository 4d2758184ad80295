// Package wcs models the linear world coordinate system of a spectral cube:
// two celestial axes followed by one spectral axis.
package wcs

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/vk/cubeproducts/internal/fits"
)

const speedOfLightKms = 299792.458

// ErrNoSpectralAxis is returned when a velocity axis is requested from a WCS
// without a recognised third axis.
var ErrNoSpectralAxis = errors.New("wcs: no spectral axis")

// Axis is one linear coordinate axis (FITS numbering starts at 1 for CRPIX).
type Axis struct {
	CType string
	CUnit string
	CRVal float64
	CDelt float64
	CRPix float64
}

// World returns the world coordinate at zero-based pixel index i.
func (a Axis) World(i int) float64 {
	return a.CRVal + (float64(i+1)-a.CRPix)*a.CDelt
}

// WCS is the coordinate description of a cube or a map.
type WCS struct {
	Axes []Axis
	// Extra holds keywords that qualify the axes (RADESYS, EQUINOX, SPECSYS,
	// RESTFRQ, PCi_j, LONPOLE, ...) and are carried over verbatim.
	Extra []fits.Card
}

var extraKeys = []string{"RADESYS", "EQUINOX", "LONPOLE", "LATPOLE", "SPECSYS", "VELREF", "RESTFRQ", "RESTFREQ", "MJD-OBS", "DATE-OBS"}

// FromHeader extracts the linear WCS of the first naxis axes.
func FromHeader(h *fits.Header, naxis int) (*WCS, error) {
	if naxis < 1 {
		return nil, fmt.Errorf("wcs: invalid axis count %d", naxis)
	}
	w := &WCS{Axes: make([]Axis, naxis)}
	for i := 0; i < naxis; i++ {
		n := i + 1
		ax := Axis{CDelt: 1, CRPix: 1}
		ax.CType, _ = h.String(fmt.Sprintf("CTYPE%d", n))
		ax.CUnit, _ = h.String(fmt.Sprintf("CUNIT%d", n))
		if v, ok := h.Float(fmt.Sprintf("CRVAL%d", n)); ok {
			ax.CRVal = v
		}
		if v, ok := h.Float(fmt.Sprintf("CRPIX%d", n)); ok {
			ax.CRPix = v
		}
		if v, ok := h.Float(fmt.Sprintf("CDELT%d", n)); ok {
			ax.CDelt = v
		} else if v, ok := h.Float(fmt.Sprintf("CD%d_%d", n, n)); ok {
			ax.CDelt = v
		}
		if ax.CDelt == 0 {
			return nil, fmt.Errorf("wcs: axis %d has zero increment", n)
		}
		w.Axes[i] = ax
	}

	for _, key := range extraKeys {
		if c, ok := h.Get(key); ok {
			w.Extra = append(w.Extra, c)
		}
	}
	for i := 1; i <= naxis; i++ {
		for j := 1; j <= naxis; j++ {
			if c, ok := h.Get(fmt.Sprintf("PC%d_%d", i, j)); ok {
				w.Extra = append(w.Extra, c)
			}
		}
	}
	return w, nil
}

// NAxis returns the number of axes.
func (w *WCS) NAxis() int {
	return len(w.Axes)
}

// Equal reports whether two WCS describe the same pixel grid.
func (w *WCS) Equal(o *WCS) bool {
	if w == nil || o == nil || len(w.Axes) != len(o.Axes) {
		return false
	}
	for i := range w.Axes {
		if w.Axes[i] != o.Axes[i] {
			return false
		}
	}
	return true
}

// Celestial returns the WCS restricted to the first two axes, as used for
// two-dimensional maps.
func (w *WCS) Celestial() *WCS {
	n := 2
	if len(w.Axes) < n {
		n = len(w.Axes)
	}
	out := &WCS{Axes: append([]Axis(nil), w.Axes[:n]...)}
	for _, c := range w.Extra {
		if strings.HasPrefix(c.Key, "PC") {
			var i, j int
			if _, err := fmt.Sscanf(c.Key, "PC%d_%d", &i, &j); err == nil && (i > n || j > n) {
				continue
			}
		}
		switch c.Key {
		case "SPECSYS", "VELREF", "RESTFRQ", "RESTFREQ":
			continue
		}
		out.Extra = append(out.Extra, c)
	}
	return out
}

// ToHeader renders the WCS into a fresh header.
func (w *WCS) ToHeader() *fits.Header {
	h := fits.NewHeader()
	h.Set("WCSAXES", len(w.Axes), "number of WCS axes")
	for i, ax := range w.Axes {
		n := i + 1
		h.Set(fmt.Sprintf("CRPIX%d", n), ax.CRPix, "pixel coordinate of reference point")
		h.Set(fmt.Sprintf("CDELT%d", n), ax.CDelt, "coordinate increment at reference point")
		if ax.CUnit != "" {
			h.Set(fmt.Sprintf("CUNIT%d", n), ax.CUnit, "units of coordinate increment and value")
		}
		if ax.CType != "" {
			h.Set(fmt.Sprintf("CTYPE%d", n), ax.CType, "")
		}
		h.Set(fmt.Sprintf("CRVAL%d", n), ax.CRVal, "coordinate value at reference point")
	}
	for _, c := range w.Extra {
		h.Set(c.Key, c.Value, c.Comment)
	}
	return h
}

func (w *WCS) restFrequency() (float64, bool) {
	for _, c := range w.Extra {
		if c.Key == "RESTFRQ" || c.Key == "RESTFREQ" {
			switch v := c.Value.(type) {
			case float64:
				return v, v > 0
			case int64:
				return float64(v), v > 0
			}
		}
	}
	return 0, false
}

// Velocities returns the velocity in km/s of each of the n channels along the
// third axis. Velocity axes in m/s or km/s are supported, and frequency axes
// are converted with the radio convention using RESTFRQ.
func (w *WCS) Velocities(n int) ([]float64, error) {
	if len(w.Axes) < 3 {
		return nil, ErrNoSpectralAxis
	}
	ax := w.Axes[2]
	kind := strings.ToUpper(ax.CType)
	if i := strings.IndexByte(kind, '-'); i >= 0 {
		kind = kind[:i]
	}
	out := make([]float64, n)

	switch kind {
	case "VRAD", "VELO", "VOPT", "VELOCITY", "VELO_LSR", "FELO":
		scale, err := velocityScale(ax.CUnit)
		if err != nil {
			return nil, err
		}
		for i := range out {
			out[i] = ax.World(i) * scale
		}
	case "FREQ":
		f0, ok := w.restFrequency()
		if !ok {
			return nil, fmt.Errorf("wcs: frequency axis without RESTFRQ")
		}
		scale, err := frequencyScale(ax.CUnit)
		if err != nil {
			return nil, err
		}
		for i := range out {
			out[i] = speedOfLightKms * (1 - ax.World(i)*scale/f0)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported CTYPE3 %q", ErrNoSpectralAxis, ax.CType)
	}
	return out, nil
}

// ChannelWidth returns the absolute channel width in km/s.
func (w *WCS) ChannelWidth() (float64, error) {
	v, err := w.Velocities(2)
	if err != nil {
		return 0, err
	}
	return math.Abs(v[1] - v[0]), nil
}

func velocityScale(unit string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "", "m/s", "m s-1", "m.s-1":
		return 1e-3, nil
	case "km/s", "km s-1", "km.s-1":
		return 1, nil
	}
	return 0, fmt.Errorf("wcs: unsupported velocity unit %q", unit)
}

func frequencyScale(unit string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "", "hz":
		return 1, nil
	case "khz":
		return 1e3, nil
	case "mhz":
		return 1e6, nil
	case "ghz":
		return 1e9, nil
	}
	return 0, fmt.Errorf("wcs: unsupported frequency unit %q", unit)
}
