package dicomio

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mrsinham/noiseforge/internal/tensor"
	"github.com/mrsinham/noiseforge/internal/util"
)

// MRImageStorage is the MR Image Storage SOP Class UID.
const MRImageStorage = "1.2.840.10008.5.1.4.1.1.4"

// Scanner represents an MR device configuration.
type Scanner struct {
	Manufacturer  string
	Model         string
	FieldStrength float64 // Tesla
}

// Scanners returns the MR scanners a phantom may be attributed to.
func Scanners() []Scanner {
	return []Scanner{
		{Manufacturer: "SIEMENS", Model: "Avanto", FieldStrength: 1.5},
		{Manufacturer: "SIEMENS", Model: "Skyra", FieldStrength: 3.0},
		{Manufacturer: "GE MEDICAL SYSTEMS", Model: "Signa HDxt", FieldStrength: 1.5},
		{Manufacturer: "GE MEDICAL SYSTEMS", Model: "Discovery MR750", FieldStrength: 3.0},
		{Manufacturer: "PHILIPS", Model: "Achieva", FieldStrength: 1.5},
		{Manufacturer: "PHILIPS", Model: "Ingenia", FieldStrength: 3.0},
	}
}

// seriesParams holds acquisition parameters written to a phantom slice.
type seriesParams struct {
	Scanner          Scanner
	PixelSpacing     float64
	SliceThickness   float64
	EchoTime         float64
	RepetitionTime   float64
	FlipAngle        float64
	SequenceName     string
	ImagingFrequency float64
}

func newSeriesParams(rng *rand.Rand) seriesParams {
	scanners := Scanners()
	sequences := []string{"T1_MPRAGE", "T1_SE", "T2_FSE", "T2_FLAIR"}
	scanner := scanners[rng.IntN(len(scanners))]

	return seriesParams{
		Scanner:          scanner,
		PixelSpacing:     0.5 + rng.Float64()*1.5,     // 0.5-2.0 mm
		SliceThickness:   1.0 + rng.Float64()*4.0,     // 1.0-5.0 mm
		EchoTime:         10.0 + rng.Float64()*20.0,   // 10-30 ms
		RepetitionTime:   400.0 + rng.Float64()*400.0, // 400-800 ms
		FlipAngle:        60.0 + rng.Float64()*30.0,   // 60-90 degrees
		SequenceName:     sequences[rng.IntN(len(sequences))],
		ImagingFrequency: scanner.FieldStrength * 42.58, // MHz
	}
}

// PhantomOptions controls WritePhantom.
type PhantomOptions struct {
	Seed        uint64
	Description string    // SeriesDescription, "PHANTOM" when empty
	Date        time.Time // Study date, zero means 2024-01-01
}

// MR pixel layout: 12 bits stored in 16.
const (
	phantomBitsAllocated = 16
	phantomBitsStored    = 12
)

// WritePhantom writes a 2D normalized tensor as a 12-bit MR slice. Metadata
// is derived from opts.Seed, so equal inputs produce identical files.
func WritePhantom(path string, img *tensor.Tensor, opts PhantomOptions) error {
	if img.NDim() != 2 {
		return fmt.Errorf("%w: phantom must be 2D, got shape %v", tensor.ErrShape, img.Shape())
	}
	rows, cols := img.Dim(0), img.Dim(1)

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))
	params := newSeriesParams(rng)

	description := opts.Description
	if description == "" {
		description = "PHANTOM"
	}
	date := opts.Date
	if date.IsZero() {
		date = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	key := fmt.Sprintf("phantom_%d_%dx%d", opts.Seed, cols, rows)
	studyUID := util.GenerateDeterministicUID(key + "_study")
	seriesUID := util.GenerateDeterministicUID(key + "_series")
	sopUID := util.GenerateDeterministicUID(key + "_instance")
	frameOfReferenceUID := util.GenerateDeterministicUID(key + "_frame")

	maxStored := float64(uint64(1)<<phantomBitsStored - 1)
	pixelInfo, err := encodeFrames(img.Data(), 1, rows, cols, phantomBitsAllocated, maxStored)
	if err != nil {
		return err
	}

	elements := []*dicom.Element{
		mustNewElement(tag.MediaStorageSOPClassUID, []string{MRImageStorage}),
		mustNewElement(tag.MediaStorageSOPInstanceUID, []string{sopUID}),
		mustNewElement(tag.TransferSyntaxUID, []string{ExplicitVRLittleEndian}),
		mustNewElement(tag.ImageType, []string{"ORIGINAL", "PRIMARY", "AXIAL"}),
		mustNewElement(tag.SOPClassUID, []string{MRImageStorage}),
		mustNewElement(tag.SOPInstanceUID, []string{sopUID}),
		mustNewElement(tag.StudyDate, []string{date.Format("20060102")}),
		mustNewElement(tag.StudyTime, []string{date.Format("150405")}),
		mustNewElement(tag.Modality, []string{"MR"}),
		mustNewElement(tag.Manufacturer, []string{params.Scanner.Manufacturer}),
		mustNewElement(tag.StudyDescription, []string{"NOISEFORGE PHANTOM"}),
		mustNewElement(tag.SeriesDescription, []string{description}),
		mustNewElement(tag.ManufacturerModelName, []string{params.Scanner.Model}),
		mustNewElement(tag.PatientName, []string{"PHANTOM^SYNTHETIC"}),
		mustNewElement(tag.PatientID, []string{fmt.Sprintf("PH%08d", opts.Seed%100000000)}),
		mustNewElement(tag.SequenceName, []string{params.SequenceName}),
		mustNewElement(tag.SliceThickness, []string{floatToDS(params.SliceThickness)}),
		mustNewElement(tag.RepetitionTime, []string{floatToDS(params.RepetitionTime)}),
		mustNewElement(tag.EchoTime, []string{floatToDS(params.EchoTime)}),
		mustNewElement(tag.ImagingFrequency, []string{floatToDS(params.ImagingFrequency)}),
		mustNewElement(tag.MagneticFieldStrength, []string{floatToDS(params.Scanner.FieldStrength)}),
		mustNewElement(tag.FlipAngle, []string{floatToDS(params.FlipAngle)}),
		mustNewElement(tag.StudyInstanceUID, []string{studyUID}),
		mustNewElement(tag.SeriesInstanceUID, []string{seriesUID}),
		mustNewElement(tag.StudyID, []string{"1"}),
		mustNewElement(tag.SeriesNumber, []string{"1"}),
		mustNewElement(tag.InstanceNumber, []string{"1"}),
		mustNewElement(tag.ImagePositionPatient, []string{"0", "0", "0"}),
		mustNewElement(tag.ImageOrientationPatient, []string{"1", "0", "0", "0", "1", "0"}),
		mustNewElement(tag.FrameOfReferenceUID, []string{frameOfReferenceUID}),
		mustNewElement(tag.SamplesPerPixel, []int{1}),
		mustNewElement(tag.PhotometricInterpretation, []string{"MONOCHROME2"}),
		mustNewElement(tag.Rows, []int{rows}),
		mustNewElement(tag.Columns, []int{cols}),
		mustNewElement(tag.PixelSpacing, []string{floatToDS(params.PixelSpacing), floatToDS(params.PixelSpacing)}),
		mustNewElement(tag.BitsAllocated, []int{phantomBitsAllocated}),
		mustNewElement(tag.BitsStored, []int{phantomBitsStored}),
		mustNewElement(tag.HighBit, []int{phantomBitsStored - 1}),
		mustNewElement(tag.PixelRepresentation, []int{0}),
		mustNewElement(tag.WindowCenter, []string{floatToDS(maxStored / 2)}),
		mustNewElement(tag.WindowWidth, []string{floatToDS(maxStored)}),
		mustNewElement(tag.PixelData, pixelInfo),
	}
	sortElements(elements)

	if err := writeDatasetToFile(path, dicom.Dataset{Elements: elements}); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// floatToDS converts a float64 to a DICOM Decimal String.
func floatToDS(f float64) string {
	return fmt.Sprintf("%.6g", f)
}
