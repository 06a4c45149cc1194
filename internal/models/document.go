package models

// Paper is a single authored document as found in author-abstract input files.
// Missing fields decode as zero values.
type Paper struct {
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
	Year     int    `json:"year"`
	Authors  string `json:"authors"`
}

// AuthorAbstracts is the on-disk input for ingestion: papers grouped by author id.
type AuthorAbstracts struct {
	AuthorAbstracts map[string][]Paper `json:"author_abstracts"`
	AuthorNames     map[string]string  `json:"author_names,omitempty"`
}

// AuthorDocument pairs a paper with the author it is ingested under.
type AuthorDocument struct {
	AuthorID string
	Paper    Paper
}
