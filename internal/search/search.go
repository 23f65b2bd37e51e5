package search

// Record is the data indexed for one radargram.
type Record struct {
	RadarKey    string  `json:"radarKey"`
	Glacier     string  `json:"glacier"`
	NiceName    string  `json:"niceName"`
	LengthKm    float64 `json:"lengthKm"`
	NSubmitters int     `json:"nSubmitters"`
	Finished    bool    `json:"finished"`
}

// Query describes a radargram search request.
type Query struct {
	Text   string
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Record `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a radargram search.
type Searcher interface {
	Search(q Query) ([]Record, int, error)
	Healthy() bool
}
