package document

import "errors"

const MaxUploadBytes = 5 << 20

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoText            = errors.New("no readable text found in document")
	ErrTooLarge          = errors.New("file exceeds upload limit")
)

// Extraction is the text recovered from an uploaded contract.
type Extraction struct {
	Text       string `json:"text"`
	Characters int    `json:"characters"`
	Format     string `json:"format"`
}
