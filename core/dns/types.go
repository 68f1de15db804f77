package dns

// RRType is a DNS resource record type code per the IANA assignments.
type RRType int

const (
	RRTypeCNAME  RRType = 5
	RRTypeMX     RRType = 15
	RRTypeDS     RRType = 43
	RRTypeRRSIG  RRType = 46
	RRTypeDNSKEY RRType = 48
	RRTypeCAA    RRType = 257
)

// String returns the mnemonic record type name.
func (t RRType) String() string {
	switch t {
	case RRTypeCNAME:
		return "CNAME"
	case RRTypeMX:
		return "MX"
	case RRTypeDS:
		return "DS"
	case RRTypeRRSIG:
		return "RRSIG"
	case RRTypeDNSKEY:
		return "DNSKEY"
	case RRTypeCAA:
		return "CAA"
	default:
		return "TYPE?"
	}
}

// DNS response codes surfaced by the DoH JSON API.
const (
	rcodeNoError  = 0
	rcodeNXDomain = 3
)

// AnswerRecord is a single entry from a DoH answer section.
type AnswerRecord struct {
	Name string `json:"name"`
	Type int    `json:"type"`
	TTL  int    `json:"TTL"`
	Data string `json:"data"`
}

// dohResponse mirrors the application/dns-json wire format.
type dohResponse struct {
	Status int            `json:"Status"`
	Answer []AnswerRecord `json:"Answer"`
}

// LookupResult is the outcome of a single typed lookup. Protocol-level
// failures (NXDOMAIN) are reported through NXDomain rather than an error so
// callers can make status decisions without exception handling.
type LookupResult struct {
	// Found reports whether at least one record of the requested type was
	// present in the answer section.
	Found bool

	// Records holds the data fields of matching answers, in answer order.
	Records []string

	// NXDomain is true when the resolver reported the name does not exist.
	NXDomain bool
}

// First returns the first record value, or the empty string.
func (r LookupResult) First() string {
	if len(r.Records) == 0 {
		return ""
	}
	return r.Records[0]
}
