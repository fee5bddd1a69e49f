package utils

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// Metadata is the normalized per-image metadata record. Every field is
// optional; extraction failures leave fields nil instead of erroring, so the
// pipeline can always attach whatever was readable.
type Metadata struct {
	Width        *int       `json:"width,omitempty"`
	Height       *int       `json:"height,omitempty"`
	CameraMake   *string    `json:"camera_make,omitempty"`
	CameraModel  *string    `json:"camera_model,omitempty"`
	DateTaken    *time.Time `json:"date_taken,omitempty"` // serialized as ISO-8601
	FocalLength  *float64   `json:"focal_length,omitempty"`
	ExposureTime *string    `json:"exposure_time,omitempty"`
	Aperture     *float64   `json:"aperture,omitempty"`
	ISOSpeed     *int       `json:"iso_speed,omitempty"`
	GPSLatitude  *float64   `json:"gps_latitude,omitempty"`
	GPSLongitude *float64   `json:"gps_longitude,omitempty"`
	FileSize     *int64     `json:"file_size,omitempty"`
	FileType     *string    `json:"file_type,omitempty"`
}

// JSON serializes the whole record for storage and substring search. Returns
// nil when serialization fails, never an error.
func (m *Metadata) JSON() *string {
	data, err := json.Marshal(m)
	if err != nil {
		log.Printf("Warning: failed to serialize metadata: %v", err)
		return nil
	}
	s := string(data)
	return &s
}

// helper to safely get and convert a rational tag (like Aperture, FocalLength)
func getRational(exifData *exif.Exif, tagName exif.FieldName) *float64 {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return nil
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		// sometimes stored as Int instead
		valInt, errInt := tag.Int(0)
		if errInt == nil {
			fVal := float64(valInt)
			return &fVal
		}
		return nil
	}
	val := float64(num) / float64(den)
	return &val
}

// helper to safely get and convert an integer tag (like ISO)
func getInt(exifData *exif.Exif, tagName exif.FieldName) *int {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return nil
	}
	val, err := tag.Int(0)
	if err != nil {
		return nil
	}
	return &val
}

// helper to safely get a string tag, trimming null terminators
func getString(exifData *exif.Exif, tagName exif.FieldName) *string {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return nil
	}
	val := strings.TrimRight(strings.Trim(tag.String(), `"`), "\x00")
	if val == "" {
		return nil
	}
	return &val
}

// helper to get exposure time, formatted as a fraction where possible
func getExposureTime(exifData *exif.Exif) *string {
	tag, err := exifData.Get(exif.ExposureTime)
	if err != nil || tag == nil {
		return nil
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return nil
	}

	if num == 1 && den > 1 { // common case: 1/XXX
		s := fmt.Sprintf("1/%d", den)
		return &s
	}

	val := float64(num) / float64(den)
	if val >= 1.0 {
		s := fmt.Sprintf("%.1fs", val)
		return &s
	}
	s := fmt.Sprintf("%.4fs", val)
	return &s
}

// dmsToDecimal converts degrees/minutes/seconds plus a hemisphere reference
// into signed decimal degrees (negative for S and W).
func dmsToDecimal(degrees, minutes, seconds float64, ref string) float64 {
	decimal := degrees + minutes/60.0 + seconds/3600.0
	if ref == "S" || ref == "W" {
		decimal = -decimal
	}
	return decimal
}

// helper to read one GPS coordinate (three rationals plus a reference tag)
func getGPSCoord(exifData *exif.Exif, coordName, refName exif.FieldName) *float64 {
	coordTag, err := exifData.Get(coordName)
	if err != nil || coordTag == nil {
		return nil
	}
	refTag, err := exifData.Get(refName)
	if err != nil || refTag == nil {
		return nil
	}
	ref, err := refTag.StringVal()
	if err != nil {
		return nil
	}

	parts := make([]float64, 3)
	for i := 0; i < 3; i++ {
		num, den, err := coordTag.Rat2(i)
		if err != nil || den == 0 {
			return nil
		}
		parts[i] = float64(num) / float64(den)
	}

	val := dmsToDecimal(parts[0], parts[1], parts[2], ref)
	return &val
}

// exifDecode is swapped out in tests to exercise the panic recovery below.
var exifDecode = exif.Decode

// ExtractMetadata reads a normalized metadata record from an image file. It
// always returns a usable record: unavailable fields stay nil and any failure
// is logged as a warning instead of propagating, so extraction can never abort
// a pipeline step.
func ExtractMetadata(filePath string) (meta *Metadata) {
	meta = &Metadata{}

	// goexif is known to panic on some malformed maker notes; the named
	// return keeps the fields collected before the panic
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Warning: metadata extraction panicked for %s: %v", filePath, r)
		}
	}()

	if info, err := os.Stat(filePath); err == nil {
		size := info.Size()
		meta.FileSize = &size
	} else {
		log.Printf("Warning: failed to stat %s for metadata: %v", filePath, err)
	}

	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filePath)), "."); ext != "" {
		meta.FileType = &ext
	}

	file, err := os.Open(filePath)
	if err != nil {
		log.Printf("Warning: failed to open %s for metadata: %v", filePath, err)
		return meta
	}
	defer file.Close()

	config, _, err := image.DecodeConfig(file)
	if err == nil {
		w, h := config.Width, config.Height
		meta.Width = &w
		meta.Height = &h
	} else {
		log.Printf("Warning: could not decode dimensions of %s: %v", filePath, err)
	}

	if _, err := file.Seek(0, 0); err != nil {
		log.Printf("Warning: failed to rewind %s for EXIF decode: %v", filePath, err)
		return meta
	}

	exifData, err := exifDecode(file)
	if err != nil {
		// not necessarily a problem, the file might just lack EXIF data
		return meta
	}

	meta.CameraMake = getString(exifData, exif.Make)
	meta.CameraModel = getString(exifData, exif.Model)
	meta.FocalLength = getRational(exifData, exif.FocalLength)
	meta.Aperture = getRational(exifData, exif.FNumber)
	meta.ISOSpeed = getInt(exifData, exif.ISOSpeedRatings)
	meta.ExposureTime = getExposureTime(exifData)
	meta.GPSLatitude = getGPSCoord(exifData, exif.GPSLatitude, exif.GPSLatitudeRef)
	meta.GPSLongitude = getGPSCoord(exifData, exif.GPSLongitude, exif.GPSLongitudeRef)

	if dt, err := exifData.DateTime(); err == nil {
		meta.DateTaken = &dt
	}

	return meta
}
