package models

// UploadedDocument is one file received in an upload request.
type UploadedDocument struct {
	FileName string
	Content  []byte
}

// Table is a row-major grid of cell strings.
type Table [][]string

// SourceInfo summarises what one uploaded document contributed.
type SourceInfo struct {
	FileName string `json:"file_name"`
	Pages    int    `json:"pages"`
	Tables   int    `json:"tables"`
	Images   int    `json:"images"`
}

// ExtractedContent holds everything pulled out of the latest upload batch.
type ExtractedContent struct {
	Text    string       `json:"text"`
	Tables  []Table      `json:"tables"`
	Images  []string     `json:"images"`
	Sources []SourceInfo `json:"sources,omitempty"`
}

// Empty reports whether no text, tables or images were found.
func (c *ExtractedContent) Empty() bool {
	return c == nil || (c.Text == "" && len(c.Tables) == 0 && len(c.Images) == 0)
}
