package models

// RingBuffer indices and constants (tick feature layout)
const (
	RB_IDX_TIMESTAMP  = 0
	RB_IDX_PRICE      = 1
	RB_IDX_CHANGE     = 2
	RB_IDX_CHANGE_PCT = 3
	RB_IDX_VOLUME     = 4
	RB_IDX_BID        = 5
	RB_IDX_ASK        = 6
	RB_NUM_FEATURES   = 7
)
