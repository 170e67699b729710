package solana

// SignatureRecord is one entry of a getSignaturesForAddress response.
// This is our domain model, independent of the RPC response format.
type SignatureRecord struct {
	Signature string
	BlockTime int64
	Slot      uint64
}

// SignaturePage is one page of signature history, newest-first as
// returned by the provider. An empty page means no transactions exist
// before the requested cursor.
type SignaturePage []SignatureRecord

// Oldest returns the chronologically oldest record of the page, which is
// the last element given the provider's newest-first ordering. The second
// return value is false for an empty page.
func (p SignaturePage) Oldest() (SignatureRecord, bool) {
	if len(p) == 0 {
		return SignatureRecord{}, false
	}
	return p[len(p)-1], true
}
