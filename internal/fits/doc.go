// Package fits reads and writes single-HDU FITS images: the on-disk format of
// the spectral cubes this pipeline consumes and of the masks and maps it
// produces. Encoding is done by github.com/astrogo/fitsio; this package adds
// an ordered, typed header view, BSCALE/BZERO/BLANK handling and atomic
// replacement of existing files. Only the primary HDU is supported.
package fits
