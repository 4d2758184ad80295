package mask

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/vk/cubeproducts/internal/ctxlog"
	"github.com/vk/cubeproducts/internal/cube"
	"github.com/vk/cubeproducts/internal/fits"
	"github.com/vk/cubeproducts/internal/fsutil"
	"github.com/vk/cubeproducts/internal/wcs"
)

// beamKeys are copied verbatim from the source header when present.
var beamKeys = []string{"BMAJ", "BMIN", "BPA"}

// maskBitpix is the on-disk integer type of mask cubes.
const maskBitpix = 16

// Write persists m as a 0/1 integer cube carrying the coordinates of w, the
// beam keywords of header, and the provenance comments. It is a no-op when
// m, w or outfile is unset. Any existing file at outfile is replaced.
func Write(ctx context.Context, m *cube.Mask, w *wcs.WCS, header *fits.Header, comments []string, outfile string) error {
	if m == nil || w == nil || outfile == "" {
		return nil
	}
	logger := ctxlog.FromContext(ctx).With("outfile", outfile)

	removed, err := fsutil.RemoveIfExists(outfile)
	if err != nil {
		return fmt.Errorf("failed to delete old mask %s: %w", outfile, err)
	}
	if removed {
		logger.Debug("Deleted old mask file.")
	}

	out := w.ToHeader()
	if header != nil {
		for _, key := range beamKeys {
			if c, ok := header.Get(key); ok {
				out.Set(c.Key, c.Value, c.Comment)
			}
		}
	}
	if len(comments) > 0 {
		out.AddComment("")
		for _, c := range comments {
			out.AddComment(strings.TrimSpace(c))
		}
		out.AddComment("")
	}

	img := &fits.Image{
		Header: out,
		Axes:   []int{m.Nx, m.Ny, m.Nz},
		Data:   m.Ints(),
	}
	if err := fits.WriteFile(outfile, img, maskBitpix); err != nil {
		return fmt.Errorf("failed to write mask %s: %w", outfile, err)
	}

	if info, err := os.Stat(outfile); err == nil {
		logger.Info("Wrote mask.", "voxels", m.Count(), "size", humanize.Bytes(uint64(info.Size())))
	}
	return nil
}
