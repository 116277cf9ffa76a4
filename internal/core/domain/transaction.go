package domain

// SignatureInfo is one entry of a signature listing, newest first.
type SignatureInfo struct {
	Signature string
	Slot      uint64
	BlockTime int64
	Failed    bool
}

// Transaction is the part of a confirmed transaction the indexer reads.
type Transaction struct {
	Signature   string
	Slot        uint64
	BlockTime   int64
	Failed      bool
	LogMessages []string
}

// ProcessedRecord marks a signature whose effects were applied.
type ProcessedRecord struct {
	Signature   string
	ProcessedAt int64
}
