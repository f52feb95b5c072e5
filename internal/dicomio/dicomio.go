// Package dicomio converts between DICOM slices and tensors.
//
// Pixels are channel-first: frames lead, so a single slice is [1, rows, cols]
// and channel-wise noise treats each frame as a channel.
//
// Pixel values are normalized to [0, 1] on read by dividing by the largest
// stored value (2^BitsStored - 1) and scaled back, rounded and clamped on
// write. Only uncompressed, unsigned, single-sample images with 8 or 16 bits
// allocated are handled.
package dicomio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/noiseforge/internal/tensor"
	"github.com/mrsinham/noiseforge/internal/util"
)

// ErrUnsupported is returned for pixel encodings this package does not handle.
var ErrUnsupported = errors.New("unsupported pixel data")

// ExplicitVRLittleEndian is the transfer syntax of every written file.
const ExplicitVRLittleEndian = "1.2.840.10008.1.2.1"

// Image is a parsed DICOM slice or multi-frame volume.
type Image struct {
	Dataset       dicom.Dataset
	Pixels        *tensor.Tensor // [frames, rows, cols], in [0, 1]
	Rows          int
	Cols          int
	Frames        int
	BitsAllocated int
	BitsStored    int
}

// MaxStored returns the largest value representable in BitsStored bits.
func (img *Image) MaxStored() float64 {
	return float64(uint64(1)<<img.BitsStored - 1)
}

// ReadImage parses path and extracts its pixel data as a normalized tensor.
func ReadImage(path string) (*Image, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	img, err := FromDataset(ds)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// FromDataset extracts pixel data from an already parsed dataset.
func FromDataset(ds dicom.Dataset) (*Image, error) {
	rows, err := intValue(ds, tag.Rows)
	if err != nil {
		return nil, err
	}
	cols, err := intValue(ds, tag.Columns)
	if err != nil {
		return nil, err
	}
	bitsAllocated, err := intValue(ds, tag.BitsAllocated)
	if err != nil {
		return nil, err
	}
	bitsStored, err := intValue(ds, tag.BitsStored)
	if err != nil {
		bitsStored = bitsAllocated
	}
	if bitsAllocated != 8 && bitsAllocated != 16 {
		return nil, fmt.Errorf("%w: %d bits allocated", ErrUnsupported, bitsAllocated)
	}
	if bitsStored <= 0 || bitsStored > bitsAllocated {
		return nil, fmt.Errorf("%w: %d bits stored in %d allocated", ErrUnsupported, bitsStored, bitsAllocated)
	}
	if spp, err := intValue(ds, tag.SamplesPerPixel); err == nil && spp != 1 {
		return nil, fmt.Errorf("%w: %d samples per pixel", ErrUnsupported, spp)
	}
	if pr, err := intValue(ds, tag.PixelRepresentation); err == nil && pr != 0 {
		return nil, fmt.Errorf("%w: signed pixel representation", ErrUnsupported)
	}

	pixelElem, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, fmt.Errorf("%w: no pixel data: %w", ErrUnsupported, err)
	}
	info := dicom.MustGetPixelDataInfo(pixelElem.Value)
	if info.IsEncapsulated {
		return nil, fmt.Errorf("%w: encapsulated (compressed) pixel data", ErrUnsupported)
	}
	if len(info.Frames) == 0 {
		return nil, fmt.Errorf("%w: no frames", ErrUnsupported)
	}

	img := &Image{
		Dataset:       ds,
		Rows:          rows,
		Cols:          cols,
		Frames:        len(info.Frames),
		BitsAllocated: bitsAllocated,
		BitsStored:    bitsStored,
	}

	pixels, err := tensor.New(img.Frames, rows, cols)
	if err != nil {
		return nil, err
	}
	data := pixels.Data()
	perFrame := rows * cols
	scale := img.MaxStored()

	for i, f := range info.Frames {
		if f.Encapsulated {
			return nil, fmt.Errorf("%w: encapsulated frame %d", ErrUnsupported, i)
		}
		dst := data[i*perFrame : (i+1)*perFrame]
		switch nf := f.NativeData.(type) {
		case *frame.NativeFrame[uint8]:
			if err := copyFrame(dst, nf.RawData, scale); err != nil {
				return nil, fmt.Errorf("frame %d: %w", i, err)
			}
		case *frame.NativeFrame[uint16]:
			if err := copyFrame(dst, nf.RawData, scale); err != nil {
				return nil, fmt.Errorf("frame %d: %w", i, err)
			}
		default:
			return nil, fmt.Errorf("%w: frame %d has native type %T", ErrUnsupported, i, f.NativeData)
		}
	}

	img.Pixels = pixels
	return img, nil
}

func copyFrame[T uint8 | uint16](dst []float64, raw []T, scale float64) error {
	if len(raw) < len(dst) {
		return fmt.Errorf("%w: %d samples for %d pixels", ErrUnsupported, len(raw), len(dst))
	}
	for i := range dst {
		dst[i] = math.Min(float64(raw[i])/scale, 1)
	}
	return nil
}

// DerivedOptions controls how a noised copy of an Image is written.
type DerivedOptions struct {
	// RunKey identifies everything that shapes the written pixels (seed,
	// generator, noise settings). Name identifies the source within the run.
	RunKey      string
	Name        string
	Description string
	Overrides   []util.TagOverride
}

// DerivedUIDs returns the SOPInstanceUID and SeriesInstanceUID a derived
// copy of src gets. They are keyed on opts.RunKey and the source UIDs, so
// the same source noised with other settings lands in another series.
func DerivedUIDs(src *Image, opts DerivedOptions) (sopUID, seriesUID string) {
	srcSOP := firstString(src.Dataset, tag.SOPInstanceUID)
	srcSeries := firstString(src.Dataset, tag.SeriesInstanceUID)
	sopUID = util.GenerateDeterministicUID(opts.RunKey + "|instance|" + opts.Name + "|" + srcSOP)
	seriesUID = util.GenerateDeterministicUID(opts.RunKey + "|series|" + srcSeries)
	return sopUID, seriesUID
}

// WriteDerived writes pixels (normalized, same shape as src.Pixels) into a
// copy of src's dataset. The instance gets new SOP and series UIDs, ImageType
// DERIVED\SECONDARY and a DerivationDescription; overrides are applied last.
func WriteDerived(path string, src *Image, pixels *tensor.Tensor, opts DerivedOptions) error {
	if !pixels.SameShape(src.Pixels) {
		return fmt.Errorf("%w: pixels shape %v, image shape %v", tensor.ErrShape, pixels.Shape(), src.Pixels.Shape())
	}

	pixelInfo, err := encodeFrames(pixels.Data(), src.Frames, src.Rows, src.Cols, src.BitsAllocated, src.MaxStored())
	if err != nil {
		return err
	}

	elements := make([]*dicom.Element, 0, len(src.Dataset.Elements)+4)
	for _, e := range src.Dataset.Elements {
		if e.Tag == tag.FileMetaInformationGroupLength {
			continue
		}
		elements = append(elements, e)
	}
	ds := &dicom.Dataset{Elements: elements}

	sopUID, seriesUID := DerivedUIDs(src, opts)
	description := opts.Description
	if len(description) > 1024 {
		description = description[:1024]
	}

	setElement(ds, mustNewElement(tag.TransferSyntaxUID, []string{ExplicitVRLittleEndian}))
	setElement(ds, mustNewElement(tag.MediaStorageSOPInstanceUID, []string{sopUID}))
	setElement(ds, mustNewElement(tag.SOPInstanceUID, []string{sopUID}))
	setElement(ds, mustNewElement(tag.SeriesInstanceUID, []string{seriesUID}))
	setElement(ds, mustNewElement(tag.ImageType, derivedImageType(ds)))
	setElement(ds, mustNewElement(tag.DerivationDescription, []string{description}))
	setElement(ds, mustNewElement(tag.PixelData, pixelInfo))

	for _, o := range opts.Overrides {
		elem, err := overrideElement(o)
		if err != nil {
			return err
		}
		setElement(ds, elem)
	}

	sortElements(ds.Elements)
	if err := writeDatasetToFile(path, *ds, dicom.SkipVRVerification(), dicom.SkipValueTypeVerification()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// derivedImageType keeps the source's value 3+ (e.g. AXIAL) behind
// DERIVED\SECONDARY.
func derivedImageType(ds *dicom.Dataset) []string {
	values := []string{"DERIVED", "SECONDARY"}
	if e, err := ds.FindElementByTag(tag.ImageType); err == nil {
		if existing, ok := e.Value.GetValue().([]string); ok && len(existing) > 2 {
			values = append(values, existing[2:]...)
		}
	}
	return values
}

// overrideElement builds the element for a tag override. Integer String
// tags are validated so a bad value fails before anything is written.
func overrideElement(o util.TagOverride) (*dicom.Element, error) {
	value := o.Value
	if o.Info.Tag == tag.SeriesNumber {
		if _, err := fmt.Sscanf(value, "%d", new(int)); err != nil {
			return nil, fmt.Errorf("tag %s: %q is not an integer", o.Info.Name, value)
		}
	}
	elem, err := dicom.NewElement(o.Info.Tag, strings.Split(value, `\`))
	if err != nil {
		return nil, fmt.Errorf("tag %s: %w", o.Info.Name, err)
	}
	return elem, nil
}

func encodeFrames(data []float64, frames, rows, cols, bitsAllocated int, scale float64) (dicom.PixelDataInfo, error) {
	perFrame := rows * cols
	if len(data) != frames*perFrame {
		return dicom.PixelDataInfo{}, fmt.Errorf("%w: %d values for %d frames of %dx%d", tensor.ErrShape, len(data), frames, rows, cols)
	}

	info := dicom.PixelDataInfo{Frames: make([]*frame.Frame, frames)}
	for i := range frames {
		src := data[i*perFrame : (i+1)*perFrame]
		f := &frame.Frame{Encapsulated: false}
		switch bitsAllocated {
		case 8:
			nf := frame.NewNativeFrame[uint8](8, rows, cols, perFrame, 1)
			quantize(nf.RawData, src, scale)
			f.NativeData = nf
		case 16:
			nf := frame.NewNativeFrame[uint16](16, rows, cols, perFrame, 1)
			quantize(nf.RawData, src, scale)
			f.NativeData = nf
		default:
			return dicom.PixelDataInfo{}, fmt.Errorf("%w: %d bits allocated", ErrUnsupported, bitsAllocated)
		}
		info.Frames[i] = f
	}
	return info, nil
}

// quantize maps normalized values to stored values, clamped to [0, scale].
// NaN maps to 0.
func quantize[T uint8 | uint16](dst []T, src []float64, scale float64) {
	for i, v := range src {
		s := math.Round(v * scale)
		if !(s > 0) {
			s = 0
		}
		dst[i] = T(math.Min(s, scale))
	}
}

func intValue(ds dicom.Dataset, t tag.Tag) (int, error) {
	e, err := ds.FindElementByTag(t)
	if err != nil {
		return 0, fmt.Errorf("missing %v: %w", t, err)
	}
	switch v := e.Value.GetValue().(type) {
	case []int:
		if len(v) > 0 {
			return v[0], nil
		}
	case []string:
		if len(v) > 0 {
			var n int
			if _, err := fmt.Sscanf(strings.TrimSpace(v[0]), "%d", &n); err == nil {
				return n, nil
			}
		}
	}
	return 0, fmt.Errorf("%v has no integer value", t)
}

// firstString returns the first value of a string element, or "" when the
// element is missing.
func firstString(ds dicom.Dataset, t tag.Tag) string {
	e, err := ds.FindElementByTag(t)
	if err != nil {
		return ""
	}
	if v, ok := e.Value.GetValue().([]string); ok && len(v) > 0 {
		return v[0]
	}
	return ""
}

func setElement(ds *dicom.Dataset, elem *dicom.Element) {
	for i, e := range ds.Elements {
		if e.Tag == elem.Tag {
			ds.Elements[i] = elem
			return
		}
	}
	ds.Elements = append(ds.Elements, elem)
}

func sortElements(elements []*dicom.Element) {
	sort.SliceStable(elements, func(i, j int) bool {
		if elements[i].Tag.Group != elements[j].Tag.Group {
			return elements[i].Tag.Group < elements[j].Tag.Group
		}
		return elements[i].Tag.Element < elements[j].Tag.Element
	})
}

// mustNewElement creates a new DICOM element, panicking on error.
func mustNewElement(t tag.Tag, value interface{}) *dicom.Element {
	elem, err := dicom.NewElement(t, value)
	if err != nil {
		panic(fmt.Sprintf("failed to create element %v: %v", t, err))
	}
	return elem
}

// writeDatasetToFile writes a DICOM dataset to a file
func writeDatasetToFile(filename string, ds dicom.Dataset, opts ...dicom.WriteOption) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return dicom.Write(f, ds, opts...)
}
