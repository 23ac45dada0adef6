package models

// AnswerResult is the QA contract: always well-formed, status "error"
// instead of a raised fault when synthesis fails.
type AnswerResult struct {
	Status       string   `json:"status"`
	Answer       string   `json:"answer"`
	Question     string   `json:"question"`
	Sources      []Source `json:"sources"`
	TotalSources int      `json:"total_sources"`
	Strategy     string   `json:"strategy,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// IngestResult reports one file or URL ingestion.
type IngestResult struct {
	Status            string `json:"status"`
	ProcessedFilename string `json:"processed_filename,omitempty"`
	Chunks            int    `json:"chunks,omitempty"`
	Embedded          int    `json:"embedded,omitempty"`
	FileType          string `json:"file_type,omitempty"`
	Message           string `json:"message,omitempty"`
	Error             string `json:"error,omitempty"`
}

// IndexReport summarizes one embedding indexing pass.
type IndexReport struct {
	Embedded int  `json:"embedded"`
	Failed   int  `json:"failed"`
	Skipped  bool `json:"skipped"`
}
