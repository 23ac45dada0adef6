package models

// URLMetadata describes one fetched web page.
type URLMetadata struct {
	URL              string  `json:"url"`
	Title            string  `json:"title"`
	Domain           string  `json:"domain"`
	ContentType      string  `json:"content_type"`
	ContentSizeMB    float64 `json:"content_size_mb"`
	ExtractionMethod string  `json:"extraction_method"`
}

// URLEntry is one row of the per-user URL listing.
type URLEntry struct {
	URL          string `json:"url"`
	Filename     string `json:"filename"`
	Chunks       int    `json:"chunks"`
	UploadedDate string `json:"uploaded_date"`
	Domain       string `json:"domain"`
}
