package app

// EventRecord is one cultural-event entry as published in the events feed.
// The JSON field names are the feed's wire contract.
type EventRecord struct {
	Icon     string  `json:"icone"`
	Title    string  `json:"titulo"`
	Date     string  `json:"data"`
	Location string  `json:"local"`
	Enrolled int     `json:"inscritos"`
	Capacity int     `json:"capacidade"`
	Rating   float64 `json:"avaliacao"`
	Category string  `json:"categoria"`
}
