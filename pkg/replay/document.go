package replay

// FormatVersion is the replay format version written in every document.
const FormatVersion = "1.0"

// Header and content encodings understood by the replay tooling.
const (
	EncodingEscapedJSON = "esc_json"
	EncodingPlain       = "plain"
	EncodingBase64      = "base64"
)

// Document is the top-level replay file. One capture file holds exactly
// one session.
type Document struct {
	Meta     Meta      `json:"meta"`
	Sessions []Session `json:"sessions"`
}

// Meta identifies the replay format.
type Meta struct {
	Version string `json:"version"`
}

// Session is one client connection.
type Session struct {
	// Protocol is the stack from the application layer down, e.g.
	// http, tls, tcp, ip.
	Protocol []ProtocolNode `json:"protocol"`

	// ConnectionTime is nanoseconds since the Unix epoch.
	ConnectionTime int64 `json:"connection-time"`

	Transactions []Transaction `json:"transactions"`
}

// ProtocolNode is one layer of the session's protocol stack.
type ProtocolNode struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	SNI     string `json:"sni,omitempty"`
	ALPN    string `json:"alpn,omitempty"`
}

// Transaction is one request/response exchange.
type Transaction struct {
	// StartTime is nanoseconds since the Unix epoch.
	StartTime int64  `json:"start-time"`
	UUID      string `json:"uuid"`

	ClientRequest  *Message `json:"client-request,omitempty"`
	ProxyRequest   *Message `json:"proxy-request,omitempty"`
	ServerResponse *Message `json:"server-response,omitempty"`
	ProxyResponse  *Message `json:"proxy-response,omitempty"`

	Timing *Timing `json:"timing,omitempty"`
}

// Message is one HTTP request or response.
type Message struct {
	Version string  `json:"version,omitempty"`
	Scheme  string  `json:"scheme,omitempty"`
	Method  string  `json:"method,omitempty"`
	URL     string  `json:"url,omitempty"`
	Status  int     `json:"status,omitempty"`
	Reason  string  `json:"reason,omitempty"`
	Headers Headers `json:"headers"`
	Content Content `json:"content"`
}

// Headers is the ordered header list, each field a [name, value] pair.
type Headers struct {
	Encoding string      `json:"encoding"`
	Fields   [][2]string `json:"fields"`
}

// Content describes a message body.
type Content struct {
	Encoding  string `json:"encoding"`
	Size      int64  `json:"size"`
	Data      string `json:"data,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
}

// Timing carries proxy result markers for a transaction.
type Timing struct {
	CacheLookup string `json:"cache-lookup,omitempty"`
	ReadResult  string `json:"read-result,omitempty"`
	WriteResult string `json:"write-result,omitempty"`
}
