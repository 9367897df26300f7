package models

// MPriceTick represents one generated price update for one symbol.
// The registry fans it out to subscribers, the history buffer keeps a bounded
// window and the storage layer persists snapshots for the REST surface.
type MPriceTick struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Volume        float64 `json:"volume"`
	Bid           float64 `json:"bid"`
	Ask           float64 `json:"ask"`
	Timestamp     int64   `json:"timestamp"`
}
