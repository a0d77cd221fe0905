package model

type StatusRef struct {
	ListID string `json:"listId"`
	Index  int    `json:"index"`
}

// VerificationReport is the JSON view of a barcode verification.
type VerificationReport struct {
	Outcome     string         `json:"outcome"`
	Accepted    bool           `json:"accepted"`
	Compliance  string         `json:"compliance"`
	Stage       string         `json:"stage"`
	Signature   string         `json:"signature"`
	Status      string         `json:"status"`
	StatusRef   *StatusRef     `json:"statusRef,omitempty"`
	StatusError string         `json:"statusError,omitempty"`
	Error       *CodedError    `json:"error,omitempty"`
	Kind        string         `json:"kind,omitempty"`
	KeyID       string         `json:"keyId,omitempty"`
	Algorithm   string         `json:"algorithm,omitempty"`
	Digest      string         `json:"digest,omitempty"`
	Compression string         `json:"compression,omitempty"`
	PayloadCID  string         `json:"payloadCid"`
	Size        int            `json:"size"`
	Claims      map[string]any `json:"claims,omitempty"`
}

// EncodeReport describes an encoded payload, or why encoding failed.
type EncodeReport struct {
	Size        int         `json:"size"`
	Limit       int         `json:"limit"`
	Compression string      `json:"compression,omitempty"`
	KeyID       string      `json:"keyId"`
	PayloadCID  string      `json:"payloadCid,omitempty"`
	QR          string      `json:"qr,omitempty"`
	Error       *CodedError `json:"error,omitempty"`
	Overage     int         `json:"overage,omitempty"`
}

type KeyReport struct {
	Identifier  string   `json:"identifier"`
	KeyID       string   `json:"keyId"`
	Algorithm   string   `json:"algorithm"`
	Fingerprint string   `json:"fingerprint,omitempty"`
	PublicKey   string   `json:"publicKey,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Path        string   `json:"path,omitempty"`
}

type StatusListReport struct {
	ListID     string `json:"listId"`
	Purpose    string `json:"purpose"`
	Entries    int    `json:"entries"`
	Set        []int  `json:"set,omitempty"`
	CID        string `json:"cid"`
	Size       int    `json:"size"`
	ValidUntil string `json:"validUntil,omitempty"`
}
