package fits

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"
	"os"
	"strconv"
	"strings"

	"github.com/astrogo/fitsio"

	"github.com/vk/cubeproducts/internal/fsutil"
)

const (
	blockSize = 2880
	cardSize  = 80
)

// ErrFormat is returned for input that does not follow the FITS standard.
var ErrFormat = errors.New("fits: malformed file")

// Image is the primary HDU of a FITS file. Data is stored in FITS order: the
// first axis varies fastest. Blank integer pixels are decoded as NaN.
type Image struct {
	Header *Header
	Axes   []int
	Data   []float64
}

// Size returns the number of pixels described by Axes.
func (img *Image) Size() int {
	if len(img.Axes) == 0 {
		return 0
	}
	n := 1
	for _, a := range img.Axes {
		n *= a
	}
	return n
}

// structural keywords are generated on write and never copied from Header.
func isStructural(key string) bool {
	switch key {
	case "SIMPLE", "BITPIX", "NAXIS", "EXTEND", "BSCALE", "BZERO", "BLANK", "END", "PCOUNT", "GCOUNT":
		return true
	}
	if strings.HasPrefix(key, "NAXIS") {
		_, err := strconv.Atoi(key[5:])
		return err == nil
	}
	return false
}

// ReadFile reads the primary HDU of the named file.
func ReadFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	img, err := Read(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return img, nil
}

// Read decodes the primary HDU from the first size bytes of r. The header is
// checked against size before any pixel buffer is allocated.
func Read(r io.ReaderAt, size int64) (*Image, error) {
	if err := checkLayout(r, size); err != nil {
		return nil, err
	}

	f, err := fitsio.Open(io.NewSectionReader(r, 0, size))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	defer f.Close()

	if len(f.HDUs()) == 0 {
		return nil, fmt.Errorf("%w: no HDU", ErrFormat)
	}
	hdu, ok := f.HDU(0).(fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("%w: primary HDU is not an image", ErrFormat)
	}
	src := hdu.Header()

	hdr := headerFrom(src)
	hdr.Set("BITPIX", src.Bitpix(), "")
	hdr.Set("NAXIS", len(src.Axes()), "")

	img := &Image{Header: hdr, Axes: append([]int(nil), src.Axes()...)}
	img.Data, err = readPixels(hdu, hdr, src.Bitpix(), img.Size())
	if err != nil {
		return nil, err
	}
	return img, nil
}

// checkLayout scans the primary header for the keywords that size the data
// unit and rejects files whose declared data does not fit in size bytes.
func checkLayout(r io.ReaderAt, size int64) error {
	var (
		simple, end bool
		bitpix      = 0
		naxis       = -1
		axes        = map[int]int64{}
		offset      int64
		block       = make([]byte, blockSize)
	)
	for !end {
		if offset+blockSize > size {
			return fmt.Errorf("%w: truncated header", ErrFormat)
		}
		if _, err := r.ReadAt(block, offset); err != nil {
			return fmt.Errorf("%w: truncated header: %v", ErrFormat, err)
		}
		offset += blockSize

		for off := 0; off < blockSize && !end; off += cardSize {
			rec := string(block[off : off+cardSize])
			key := strings.TrimSpace(rec[:8])
			if key == "END" {
				end = true
				break
			}
			if rec[8:10] != "= " {
				continue
			}
			value := rec[10:]
			if i := strings.IndexByte(value, '/'); i >= 0 {
				value = value[:i]
			}
			value = strings.TrimSpace(value)

			switch {
			case key == "SIMPLE":
				simple = value == "T"
			case key == "BITPIX":
				bitpix, _ = strconv.Atoi(value)
			case key == "NAXIS":
				n, err := strconv.Atoi(value)
				if err != nil || n < 0 || n > 999 {
					return fmt.Errorf("%w: invalid NAXIS %q", ErrFormat, value)
				}
				naxis = n
			case strings.HasPrefix(key, "NAXIS"):
				i, err := strconv.Atoi(key[5:])
				if err != nil {
					continue
				}
				n, err := strconv.ParseInt(value, 10, 64)
				if err != nil || n < 0 {
					return fmt.Errorf("%w: invalid %s %q", ErrFormat, key, value)
				}
				axes[i] = n
			}
		}
	}

	if !simple {
		return fmt.Errorf("%w: missing SIMPLE = T", ErrFormat)
	}
	width, err := pixelWidth(bitpix)
	if err != nil {
		return err
	}
	if naxis < 0 {
		return fmt.Errorf("%w: missing NAXIS", ErrFormat)
	}
	if naxis == 0 {
		return nil
	}

	need := uint64(width)
	for i := 1; i <= naxis; i++ {
		n, ok := axes[i]
		if !ok {
			return fmt.Errorf("%w: missing NAXIS%d", ErrFormat, i)
		}
		hi, lo := bits.Mul64(need, uint64(n))
		if hi != 0 {
			return fmt.Errorf("%w: data size overflows", ErrFormat)
		}
		need = lo
	}
	if avail := uint64(size - offset); need > avail {
		return fmt.Errorf("%w: header declares %d data bytes, file holds %d", ErrFormat, need, avail)
	}
	return nil
}

func pixelWidth(bitpix int) (int, error) {
	switch bitpix {
	case 8:
		return 1, nil
	case 16:
		return 2, nil
	case 32, -32:
		return 4, nil
	case 64, -64:
		return 8, nil
	}
	return 0, fmt.Errorf("%w: unsupported BITPIX %d", ErrFormat, bitpix)
}

func readPixels(hdu fitsio.Image, hdr *Header, bitpix, n int) ([]float64, error) {
	bscale, ok := hdr.Float("BSCALE")
	if !ok {
		bscale = 1
	}
	bzero, _ := hdr.Float("BZERO")
	blank, hasBlank := hdr.Int("BLANK")
	scaled := func(iv int64) float64 {
		if hasBlank && iv == int64(blank) {
			return math.NaN()
		}
		return bzero + bscale*float64(iv)
	}

	switch bitpix {
	case 8:
		return decode(hdu, n, func(v uint8) float64 { return scaled(int64(v)) })
	case 16:
		return decode(hdu, n, func(v int16) float64 { return scaled(int64(v)) })
	case 32:
		return decode(hdu, n, func(v int32) float64 { return scaled(int64(v)) })
	case 64:
		return decode(hdu, n, func(v int64) float64 { return scaled(v) })
	case -32:
		return decode(hdu, n, func(v float32) float64 { return float64(v) })
	case -64:
		return decode(hdu, n, func(v float64) float64 { return v })
	}
	return nil, fmt.Errorf("%w: unsupported BITPIX %d", ErrFormat, bitpix)
}

func decode[T uint8 | int16 | int32 | int64 | float32 | float64](hdu fitsio.Image, n int, conv func(T) float64) ([]float64, error) {
	raw := make([]T, n)
	if n > 0 {
		if err := hdu.Read(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = conv(v)
	}
	return out, nil
}

// WriteFile writes img as a single-HDU FITS file with the given BITPIX. The
// file is replaced atomically.
func WriteFile(path string, img *Image, bitpix int) error {
	return fsutil.WriteFileAtomic(path, func(w io.Writer) error {
		return Write(w, img, bitpix)
	})
}

// Write encodes img as a primary HDU. Integer output rounds to the nearest
// value and stores NaN as 0.
func Write(w io.Writer, img *Image, bitpix int) error {
	if _, err := pixelWidth(bitpix); err != nil {
		return err
	}
	if img.Size() != len(img.Data) {
		return fmt.Errorf("%w: data length %d does not match axes %v", ErrFormat, len(img.Data), img.Axes)
	}

	f, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	hdu := fitsio.NewImage(bitpix, img.Axes)
	defer hdu.Close()

	if img.Header != nil {
		if err := hdu.Header().Append(img.Header.fitsioCards()...); err != nil {
			return fmt.Errorf("%w: %v", ErrFormat, err)
		}
	}

	switch bitpix {
	case 8:
		err = encode(hdu, img.Data, func(v float64) uint8 { return uint8(toInt(v)) })
	case 16:
		err = encode(hdu, img.Data, func(v float64) int16 { return int16(toInt(v)) })
	case 32:
		err = encode(hdu, img.Data, func(v float64) int32 { return int32(toInt(v)) })
	case 64:
		err = encode(hdu, img.Data, toInt)
	case -32:
		err = encode(hdu, img.Data, func(v float64) float32 { return float32(v) })
	case -64:
		err = encode(hdu, img.Data, func(v float64) float64 { return v })
	}
	if err != nil {
		return err
	}

	if err := f.Write(hdu); err != nil {
		return err
	}
	return f.Close()
}

func encode[T uint8 | int16 | int32 | int64 | float32 | float64](hdu fitsio.Image, data []float64, conv func(float64) T) error {
	out := make([]T, len(data))
	for i, v := range data {
		out[i] = conv(v)
	}
	return hdu.Write(&out)
}

func toInt(v float64) int64 {
	if math.IsNaN(v) {
		return 0
	}
	return int64(math.Round(v))
}
