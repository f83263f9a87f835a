package extractor

import "errors"

var (
	ErrMissingUploadFiles = errors.New("no pdf files uploaded")
	ErrInvalidFileType    = errors.New("invalid file type")
	ErrNoContentExtracted = errors.New("no content extracted")
)

// ExtractionError reports a document the PDF library could not read.
// Its message is the library's own.
type ExtractionError struct {
	FileName string
	Err      error
}

func (e *ExtractionError) Error() string {
	return e.Err.Error()
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
