package models

// -----------------------------------------------------------------------------
// Instrument classes supported by the simulator
// -----------------------------------------------------------------------------

const (
	ClassStock  = "stock"
	ClassETF    = "etf"
	ClassCrypto = "crypto"
)

// MInstrument describes one tradable symbol of the static instrument universe.
type MInstrument struct {
	Symbol    string  `yaml:"symbol" json:"symbol"`
	Class     string  `yaml:"class" json:"class"`
	BasePrice float64 `yaml:"base_price" json:"base_price"`
}
