// Package decoder turns opaque call data into a structured description of
// the intended call.
package decoder

// Kind tags the shape of a decoded call.
type Kind string

const (
	KindTransfer Kind = "transfer"
	KindBatch    Kind = "batch"
	KindWrapper  Kind = "wrapper"
	KindApproval Kind = "approval"
	KindCustom   Kind = "custom"
	KindRaw      Kind = "raw"
)

// Transfer is one recipient and value in smallest units. Token is the ERC-20
// contract for token transfers and empty for native transfers.
type Transfer struct {
	To    string `json:"to"`
	Value string `json:"value"`
	Token string `json:"token,omitempty"`
}

// Decoded describes a call. When decoding fails Kind is KindRaw and only Raw
// and CallHash are meaningful.
type Decoded struct {
	Family     string     `json:"family"`
	Kind       Kind       `json:"kind"`
	Method     string     `json:"method,omitempty"`
	Recipients []Transfer `json:"recipients,omitempty"`
	Inner      []Decoded  `json:"inner,omitempty"`
	CustomTx   bool       `json:"customTx"`
	Raw        string     `json:"raw,omitempty"`
	CallHash   string     `json:"callHash,omitempty"`
}

func raw(family, callHash string) Decoded {
	return Decoded{Family: family, Kind: KindRaw, CustomTx: true, Raw: callHash, CallHash: callHash}
}

// collect flattens inner recipients into d and propagates CustomTx.
func (d *Decoded) collect() {
	for _, in := range d.Inner {
		d.Recipients = append(d.Recipients, in.Recipients...)
		if in.CustomTx {
			d.CustomTx = true
		}
	}
}
