package geotiff

import (
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// Encode serializes img as a little-endian classic TIFF: header, a single
// uncompressed pixel strip, out-of-line tag values, then the directory.
func Encode(img *Image) ([]byte, error) {
	if img.Width < 0 || img.Height < 0 || len(img.Samples) != img.Width*img.Height {
		return nil, fmt.Errorf("geotiff: %dx%d image with %d samples", img.Width, img.Height, len(img.Samples))
	}

	pixels, bits, format, err := encodeSamples(img)
	if err != nil {
		return nil, err
	}

	var e entryList
	e.addLong(tagImageWidth, uint32(img.Width))
	e.addLong(tagImageLength, uint32(img.Height))
	e.addShort(tagBitsPerSample, uint16(bits))
	e.addShort(tagCompression, 1)
	e.addShort(tagPhotometric, 1) // BlackIsZero
	e.addLong(tagStripOffsets, headerSize)
	e.addShort(tagSamplesPerPixel, 1)
	rowsPerStrip := img.Height
	if rowsPerStrip == 0 {
		rowsPerStrip = 1
	}
	e.addLong(tagRowsPerStrip, uint32(rowsPerStrip))
	e.addLong(tagStripByteCounts, uint32(len(pixels)))
	e.addShort(tagPlanarConfig, 1)
	e.addShort(tagSampleFormat, uint16(format))

	if img.PixelScale != nil {
		e.addDouble(tagModelPixelScale, img.PixelScale[:]...)
	}
	if img.Tiepoint != nil {
		e.addDouble(tagModelTiepoint, img.Tiepoint[:]...)
	}
	if img.EPSG != 0 {
		e.addShort(tagGeoKeyDirectory, geoKeyDirectory(img.EPSG)...)
	}
	if len(img.Metadata) > 0 {
		doc, err := gdalMetadataXML(img.Metadata)
		if err != nil {
			return nil, err
		}
		e.addASCII(tagGDALMetadata, doc)
	}
	if img.Nodata != nil {
		e.addASCII(tagGDALNodata, strconv.FormatFloat(*img.Nodata, 'g', -1, 64))
	}

	return e.assemble(pixels), nil
}

// WriteFile encodes img to path, creating parent directories as needed.
func WriteFile(path string, img *Image) error {
	raw, err := Encode(img)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadFile decodes the single-band GeoTIFF at path.
func ReadFile(path string) (*Image, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}

func encodeSamples(img *Image) (pixels []byte, bits, format int, err error) {
	le := binary.LittleEndian
	switch img.DType {
	case Uint8:
		pixels = make([]byte, len(img.Samples))
		for i, v := range img.Samples {
			pixels[i] = byte(clampUnsigned(v, math.MaxUint8))
		}
		return pixels, 8, sampleFormatUint, nil
	case Uint16:
		pixels = make([]byte, 2*len(img.Samples))
		for i, v := range img.Samples {
			le.PutUint16(pixels[2*i:], uint16(clampUnsigned(v, math.MaxUint16)))
		}
		return pixels, 16, sampleFormatUint, nil
	case Float32:
		pixels = make([]byte, 4*len(img.Samples))
		for i, v := range img.Samples {
			le.PutUint32(pixels[4*i:], math.Float32bits(float32(v)))
		}
		return pixels, 32, sampleFormatFloat, nil
	default:
		return nil, 0, 0, fmt.Errorf("%w: sample type %v", ErrUnsupported, img.DType)
	}
}

// clampUnsigned keeps float-to-integer conversion in range; out-of-range
// and NaN inputs saturate rather than hitting undefined conversions.
func clampUnsigned(v, max float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// geoKeyDirectory builds the GeoKey shorts for an EPSG code. Codes in the
// 4000 range are recorded as geographic coordinate systems, everything
// else as projected; readers recover the code from either key.
func geoKeyDirectory(epsg int) []uint16 {
	geographic := epsg >= 4000 && epsg < 5000
	keys := [][4]uint16{
		{keyModelType, 0, 1, modelTypeProjected},
		{keyRasterType, 0, 1, rasterPixelIsArea},
	}
	if geographic {
		keys[0][3] = modelTypeGeographic
		keys = append(keys, [4]uint16{keyGeographicType, 0, 1, uint16(epsg)})
	} else {
		keys = append(keys, [4]uint16{keyProjectedCS, 0, 1, uint16(epsg)})
	}

	out := []uint16{1, 1, 0, uint16(len(keys))}
	for _, k := range keys {
		out = append(out, k[:]...)
	}
	return out
}

func gdalMetadataXML(metadata map[string]string) (string, error) {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	doc := gdalMetadataDoc{}
	for _, k := range keys {
		doc.Items = append(doc.Items, gdalMetaItem{Name: k, Value: metadata[k]})
	}
	raw, err := xml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("geotiff: encode GDAL metadata: %w", err)
	}
	return string(raw), nil
}

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

type entryList struct {
	entries []ifdEntry
}

func (e *entryList) addShort(tag uint16, vals ...uint16) {
	data := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(data[2*i:], v)
	}
	e.entries = append(e.entries, ifdEntry{tag: tag, typ: typeShort, count: uint32(len(vals)), data: data})
}

func (e *entryList) addLong(tag uint16, vals ...uint32) {
	data := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(data[4*i:], v)
	}
	e.entries = append(e.entries, ifdEntry{tag: tag, typ: typeLong, count: uint32(len(vals)), data: data})
}

func (e *entryList) addDouble(tag uint16, vals ...float64) {
	data := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(data[8*i:], math.Float64bits(v))
	}
	e.entries = append(e.entries, ifdEntry{tag: tag, typ: typeDouble, count: uint32(len(vals)), data: data})
}

func (e *entryList) addASCII(tag uint16, s string) {
	data := append([]byte(s), 0)
	e.entries = append(e.entries, ifdEntry{tag: tag, typ: typeASCII, count: uint32(len(data)), data: data})
}

// assemble lays the file out as header, pixel strip, out-of-line values,
// directory. Directory entries must be sorted by tag and out-of-line
// values placed at even offsets.
func (e *entryList) assemble(pixels []byte) []byte {
	le := binary.LittleEndian
	sort.Slice(e.entries, func(i, j int) bool { return e.entries[i].tag < e.entries[j].tag })

	extraStart := headerSize + len(pixels)
	if extraStart%2 != 0 {
		extraStart++
	}

	var extra []byte
	offsets := make([]int, len(e.entries))
	for i, en := range e.entries {
		if len(en.data) <= 4 {
			continue
		}
		if len(extra)%2 != 0 {
			extra = append(extra, 0)
		}
		offsets[i] = extraStart + len(extra)
		extra = append(extra, en.data...)
	}

	ifdOffset := extraStart + len(extra)
	if ifdOffset%2 != 0 {
		extra = append(extra, 0)
		ifdOffset++
	}

	buf := make([]byte, 0, ifdOffset+2+len(e.entries)*12+4)
	buf = append(buf, 'I', 'I')
	buf = le.AppendUint16(buf, 42)
	buf = le.AppendUint32(buf, uint32(ifdOffset))
	buf = append(buf, pixels...)
	for len(buf) < extraStart {
		buf = append(buf, 0)
	}
	buf = append(buf, extra...)

	buf = le.AppendUint16(buf, uint16(len(e.entries)))
	for i, en := range e.entries {
		buf = le.AppendUint16(buf, en.tag)
		buf = le.AppendUint16(buf, en.typ)
		buf = le.AppendUint32(buf, en.count)
		if len(en.data) > 4 {
			buf = le.AppendUint32(buf, uint32(offsets[i]))
		} else {
			var inline [4]byte
			copy(inline[:], en.data)
			buf = append(buf, inline[:]...)
		}
	}
	buf = le.AppendUint32(buf, 0) // no further directories
	return buf
}
