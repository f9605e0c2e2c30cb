package pkg

const (
	HeaderTraceId       string = "X-Trace-Id"
	HeaderRequestId     string = "X-Request-Id"
	HeaderUserId        string = "X-User-Id"
	HeaderForwardedFor  string = "X-Forwarded-For"
	HeaderRealIp        string = "X-Real-Ip"
	HeaderUserAgent     string = "User-Agent"
	HeaderReferer       string = "Referer"
	UnknownSource       string = "Unknown"
	DirectReferer       string = "Direct"
	ProtocolHTTP        string = "HTTP"
	DefaultListingLimit int    = 10
)

const (
	TraceId  string = "trace_id"
	SourceId string = "source_id"
	UserId   string = "user_id"
	TransNum string = "trans_num"
)

// Classification is the label the request classifier attaches to an inbound request.
type Classification string

const (
	ClassificationNormal     Classification = "normal"
	ClassificationSuspicious Classification = "suspicious"
	ClassificationBlocked    Classification = "blocked"
)

// RiskLabel is the label of a transaction risk decision.
type RiskLabel string

const (
	RiskLabelFraud  RiskLabel = "Fraud"
	RiskLabelNormal RiskLabel = "Normal"
)
