package geotiff

import (
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Decode parses a single-band GeoTIFF held in memory. Files with multiple
// image directories are read from the first directory only.
func Decode(raw []byte) (*Image, error) {
	if len(raw) < headerSize {
		return nil, fmt.Errorf("%w: shorter than a TIFF header", ErrCorrupt)
	}

	var order binary.ByteOrder
	switch string(raw[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: bad byte-order mark %q", ErrCorrupt, raw[:2])
	}
	if order.Uint16(raw[2:4]) != 42 {
		return nil, fmt.Errorf("%w: bad magic number", ErrCorrupt)
	}

	d := &decoder{raw: raw, order: order}
	if err := d.readIFD(order.Uint32(raw[4:8])); err != nil {
		return nil, err
	}
	return d.decodeImage()
}

type field struct {
	tag   uint16
	typ   uint16
	count uint32
	value [4]byte
}

type decoder struct {
	raw    []byte
	order  binary.ByteOrder
	fields map[uint16]field
}

func (d *decoder) readIFD(off uint32) error {
	start := int(off)
	if start < headerSize || start+2 > len(d.raw) {
		return fmt.Errorf("%w: directory offset %d out of range", ErrCorrupt, off)
	}
	n := int(d.order.Uint16(d.raw[start : start+2]))
	if start+2+n*12+4 > len(d.raw) {
		return fmt.Errorf("%w: truncated directory", ErrCorrupt)
	}

	d.fields = make(map[uint16]field, n)
	for i := 0; i < n; i++ {
		base := start + 2 + i*12
		f := field{
			tag:   d.order.Uint16(d.raw[base : base+2]),
			typ:   d.order.Uint16(d.raw[base+2 : base+4]),
			count: d.order.Uint32(d.raw[base+4 : base+8]),
		}
		copy(f.value[:], d.raw[base+8:base+12])
		d.fields[f.tag] = f
	}
	return nil
}

// data returns the value bytes of a field, following the offset
// indirection for values larger than the 4-byte inline slot.
func (d *decoder) data(f field) ([]byte, error) {
	size := typeSize(f.typ) * int(f.count)
	if size == 0 {
		return nil, fmt.Errorf("%w: tag %d has field type %d", ErrUnsupported, f.tag, f.typ)
	}
	if size <= 4 {
		return f.value[:size], nil
	}
	off := int(d.order.Uint32(f.value[:]))
	if off < headerSize || off+size > len(d.raw) {
		return nil, fmt.Errorf("%w: tag %d value outside file", ErrCorrupt, f.tag)
	}
	return d.raw[off : off+size], nil
}

// uintValues reads a SHORT or LONG field as unsigned integers.
func (d *decoder) uintValues(f field) ([]uint, error) {
	raw, err := d.data(f)
	if err != nil {
		return nil, err
	}
	out := make([]uint, f.count)
	switch f.typ {
	case typeShort:
		for i := range out {
			out[i] = uint(d.order.Uint16(raw[2*i:]))
		}
	case typeLong:
		for i := range out {
			out[i] = uint(d.order.Uint32(raw[4*i:]))
		}
	default:
		return nil, fmt.Errorf("%w: tag %d has field type %d, want SHORT or LONG", ErrCorrupt, f.tag, f.typ)
	}
	return out, nil
}

func (d *decoder) uintValue(tag uint16, fallback uint) (uint, error) {
	f, ok := d.fields[tag]
	if !ok {
		return fallback, nil
	}
	vals, err := d.uintValues(f)
	if err != nil {
		return 0, err
	}
	if len(vals) == 0 {
		return fallback, nil
	}
	return vals[0], nil
}

func (d *decoder) doubleValues(tag uint16) ([]float64, error) {
	f, ok := d.fields[tag]
	if !ok {
		return nil, nil
	}
	if f.typ != typeDouble {
		return nil, fmt.Errorf("%w: tag %d has field type %d, want DOUBLE", ErrCorrupt, tag, f.typ)
	}
	raw, err := d.data(f)
	if err != nil {
		return nil, err
	}
	out := make([]float64, f.count)
	for i := range out {
		out[i] = math.Float64frombits(d.order.Uint64(raw[8*i:]))
	}
	return out, nil
}

func (d *decoder) asciiValue(tag uint16) (string, error) {
	f, ok := d.fields[tag]
	if !ok {
		return "", nil
	}
	raw, err := d.data(f)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(raw), "\x00"), nil
}

func (d *decoder) decodeImage() (*Image, error) {
	if _, tiled := d.fields[tagTileWidth]; tiled {
		return nil, fmt.Errorf("%w: tiled layout", ErrUnsupported)
	}
	if v, err := d.uintValue(tagCompression, 1); err != nil {
		return nil, err
	} else if v != 1 {
		return nil, fmt.Errorf("%w: compression scheme %d", ErrUnsupported, v)
	}
	if v, err := d.uintValue(tagSamplesPerPixel, 1); err != nil {
		return nil, err
	} else if v != 1 {
		return nil, fmt.Errorf("%w: %d samples per pixel", ErrUnsupported, v)
	}

	width, err := d.uintValue(tagImageWidth, 0)
	if err != nil {
		return nil, err
	}
	height, err := d.uintValue(tagImageLength, 0)
	if err != nil {
		return nil, err
	}
	bits, err := d.uintValue(tagBitsPerSample, 8)
	if err != nil {
		return nil, err
	}
	format, err := d.uintValue(tagSampleFormat, sampleFormatUint)
	if err != nil {
		return nil, err
	}

	dtype, err := sampleDType(bits, format)
	if err != nil {
		return nil, err
	}

	pixels, err := d.stripData(int(width), int(height), int(bits)/8)
	if err != nil {
		return nil, err
	}

	img := &Image{
		Width:   int(width),
		Height:  int(height),
		DType:   dtype,
		Samples: decodeSamples(pixels, dtype, d.order),
	}

	if err := d.decodeGeo(img); err != nil {
		return nil, err
	}
	return img, nil
}

func sampleDType(bits, format uint) (DType, error) {
	switch {
	case bits == 8 && format == sampleFormatUint:
		return Uint8, nil
	case bits == 16 && format == sampleFormatUint:
		return Uint16, nil
	case bits == 32 && format == sampleFormatFloat:
		return Float32, nil
	default:
		return 0, fmt.Errorf("%w: %d-bit samples with format %d", ErrUnsupported, bits, format)
	}
}

// stripData concatenates the pixel strips into one buffer of exactly
// width*height*bytesPerSample bytes.
func (d *decoder) stripData(width, height, bytesPerSample int) ([]byte, error) {
	total := width * height * bytesPerSample
	if total == 0 {
		return nil, nil
	}

	offField, ok := d.fields[tagStripOffsets]
	if !ok {
		return nil, fmt.Errorf("%w: no strip offsets", ErrCorrupt)
	}
	offsets, err := d.uintValues(offField)
	if err != nil {
		return nil, err
	}
	countField, ok := d.fields[tagStripByteCounts]
	if !ok {
		return nil, fmt.Errorf("%w: no strip byte counts", ErrCorrupt)
	}
	counts, err := d.uintValues(countField)
	if err != nil {
		return nil, err
	}
	if len(offsets) != len(counts) {
		return nil, fmt.Errorf("%w: %d strip offsets but %d byte counts", ErrCorrupt, len(offsets), len(counts))
	}

	pixels := make([]byte, 0, total)
	for i := range offsets {
		off, count := int(offsets[i]), int(counts[i])
		if off < headerSize || off+count > len(d.raw) {
			return nil, fmt.Errorf("%w: strip %d outside file", ErrCorrupt, i)
		}
		pixels = append(pixels, d.raw[off:off+count]...)
		if len(pixels) >= total {
			break
		}
	}
	if len(pixels) < total {
		return nil, fmt.Errorf("%w: strips hold %d bytes, image needs %d", ErrCorrupt, len(pixels), total)
	}
	return pixels[:total], nil
}

func decodeSamples(pixels []byte, dtype DType, order binary.ByteOrder) []float64 {
	switch dtype {
	case Uint8:
		out := make([]float64, len(pixels))
		for i, b := range pixels {
			out[i] = float64(b)
		}
		return out
	case Uint16:
		out := make([]float64, len(pixels)/2)
		for i := range out {
			out[i] = float64(order.Uint16(pixels[2*i:]))
		}
		return out
	case Float32:
		out := make([]float64, len(pixels)/4)
		for i := range out {
			out[i] = float64(math.Float32frombits(order.Uint32(pixels[4*i:])))
		}
		return out
	default:
		return nil
	}
}

func (d *decoder) decodeGeo(img *Image) error {
	scale, err := d.doubleValues(tagModelPixelScale)
	if err != nil {
		return err
	}
	if len(scale) >= 3 {
		img.PixelScale = &[3]float64{scale[0], scale[1], scale[2]}
	}

	tie, err := d.doubleValues(tagModelTiepoint)
	if err != nil {
		return err
	}
	if len(tie) >= 6 {
		img.Tiepoint = &[6]float64{tie[0], tie[1], tie[2], tie[3], tie[4], tie[5]}
	}

	if err := d.decodeGeoKeys(img); err != nil {
		return err
	}

	if s, err := d.asciiValue(tagGDALNodata); err != nil {
		return err
	} else if s = strings.TrimSpace(s); s != "" {
		if nd, err := strconv.ParseFloat(s, 64); err == nil {
			img.Nodata = &nd
		}
	}

	return d.decodeGDALMetadata(img)
}

func (d *decoder) decodeGeoKeys(img *Image) error {
	f, ok := d.fields[tagGeoKeyDirectory]
	if !ok {
		return nil
	}
	if f.typ != typeShort {
		return fmt.Errorf("%w: GeoKey directory has field type %d, want SHORT", ErrCorrupt, f.typ)
	}
	raw, err := d.data(f)
	if err != nil {
		return err
	}
	shorts := make([]uint16, f.count)
	for i := range shorts {
		shorts[i] = d.order.Uint16(raw[2*i:])
	}
	if len(shorts) < 4 {
		return nil
	}

	// Header is {version, revision, minor, key count}; each key is
	// {id, tag location, count, value}. Only inline values matter here.
	numKeys := int(shorts[3])
	for i := 0; i < numKeys && 4+4*i+4 <= len(shorts); i++ {
		key := shorts[4+4*i : 4+4*i+4]
		if key[1] != 0 {
			continue
		}
		switch key[0] {
		case keyGeographicType, keyProjectedCS:
			img.EPSG = int(key[3])
		}
	}
	return nil
}

type gdalMetadataDoc struct {
	XMLName xml.Name       `xml:"GDALMetadata"`
	Items   []gdalMetaItem `xml:"Item"`
}

type gdalMetaItem struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

func (d *decoder) decodeGDALMetadata(img *Image) error {
	s, err := d.asciiValue(tagGDALMetadata)
	if err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}

	var doc gdalMetadataDoc
	if err := xml.Unmarshal([]byte(s), &doc); err != nil {
		return fmt.Errorf("%w: bad GDAL metadata: %v", ErrCorrupt, err)
	}
	if len(doc.Items) == 0 {
		return nil
	}
	img.Metadata = make(map[string]string, len(doc.Items))
	for _, item := range doc.Items {
		img.Metadata[item.Name] = item.Value
	}
	return nil
}
