package nock

import "net/http"

// Method is the HTTP method an expectation is registered for.
type Method string

const (
	MethodNotSet Method = ""
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodDelete Method = http.MethodDelete
	MethodHead   Method = http.MethodHead
	MethodPatch  Method = http.MethodPatch
	MethodMerge  Method = "MERGE"
)

func (m Method) String() string {
	if m == MethodNotSet {
		return "NotSet"
	}
	return string(m)
}

// HeaderMode selects how request headers are matched.
type HeaderMode int

const (
	// HeaderNone places no constraint on request headers.
	HeaderNone HeaderMode = iota
	// HeaderMatch requires every declared header, extra headers allowed.
	HeaderMatch
	// HeaderExact requires every declared header and no other.
	HeaderExact
)

func (m HeaderMode) String() string {
	switch m {
	case HeaderMatch:
		return "match"
	case HeaderExact:
		return "exact"
	default:
		return "none"
	}
}

// QueryMode selects how the request query string is matched.
type QueryMode int

const (
	QueryNone QueryMode = iota
	QueryNameValue
	QueryNameValueExact
	QueryFunc
	QueryBool
)

func (m QueryMode) String() string {
	switch m {
	case QueryNameValue:
		return "name-value"
	case QueryNameValueExact:
		return "name-value-exact"
	case QueryFunc:
		return "func"
	case QueryBool:
		return "bool"
	default:
		return "none"
	}
}

// BodyMode is the kind of a BodyMatcher.
type BodyMode int

const (
	BodyNone BodyMode = iota
	BodyLiteral
	BodyStringFunc
	BodyTypedFunc
)

// ReplyKind tags the reply variant carried by an expectation.
type ReplyKind int

const (
	// ReplyBody answers with a stored status, body and header set.
	ReplyBody ReplyKind = iota
	// ReplyGenerator answers with the output of a ResponderFunc.
	ReplyGenerator
	// ReplyCustom answers with a pre-built *http.Response.
	ReplyCustom
	// ReplyError fails the intercepted request with a configured error.
	ReplyError
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyGenerator:
		return "generator"
	case ReplyCustom:
		return "custom"
	case ReplyError:
		return "error"
	default:
		return "body"
	}
}
