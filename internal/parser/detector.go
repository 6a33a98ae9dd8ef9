package parser

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/sstent/activityplot-go/internal/models"
)

const sniffLen = 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FileTypeFromName returns the format implied by a file name, ignoring a
// trailing .gz. Unknown extensions give FileTypeUnknown.
func FileTypeFromName(name string) models.FileType {
	name = strings.ToLower(name)
	name = strings.TrimSuffix(name, ".gz")
	switch filepath.Ext(name) {
	case ".fit":
		return models.FileTypeFIT
	case ".tcx":
		return models.FileTypeTCX
	case ".gpx":
		return models.FileTypeGPX
	default:
		return models.FileTypeUnknown
	}
}

// DetectFileType sniffs the first bytes of an uncompressed file.
func DetectFileType(path string) (models.FileType, error) {
	file, err := os.Open(path)
	if err != nil {
		return models.FileTypeUnknown, err
	}
	defer file.Close()

	header := make([]byte, sniffLen)
	n, err := file.Read(header)
	if err != nil && n == 0 {
		return models.FileTypeUnknown, err
	}
	return DetectFileTypeFromData(header[:n]), nil
}

func DetectFileTypeFromData(data []byte) models.FileType {
	// FIT headers carry ".FIT" at bytes 8-11.
	if len(data) >= 12 && bytes.Equal(data[8:12], []byte(".FIT")) {
		return models.FileTypeFIT
	}

	data = trimXMLPreamble(data)
	if !bytes.HasPrefix(data, []byte("<")) {
		return models.FileTypeUnknown
	}
	switch {
	case bytes.Contains(data, []byte("TrainingCenterDatabase")):
		return models.FileTypeTCX
	case bytes.Contains(data, []byte("<gpx")), bytes.Contains(data, []byte("topografix.com/GPX")):
		return models.FileTypeGPX
	}
	return models.FileTypeUnknown
}

// trimXMLPreamble drops a UTF-8 BOM and whitespace ahead of the first tag.
func trimXMLPreamble(data []byte) []byte {
	data = bytes.TrimPrefix(data, utf8BOM)
	return bytes.TrimLeft(data, " \t\r\n")
}
