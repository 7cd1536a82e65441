package tracing

import "go.opentelemetry.io/otel/attribute"

// Attribute keys recorded on Guardian spans.
const (
	AttrMode        = attribute.Key("guardian.mode")
	AttrRulesetHash = attribute.Key("guardian.ruleset_hash")
	AttrCached      = attribute.Key("guardian.cached")
	AttrPassed      = attribute.Key("guardian.passed")
	AttrViolations  = attribute.Key("guardian.violations")
	AttrAuditLine   = attribute.Key("guardian.audit.line")
	AttrAnchorLines = attribute.Key("guardian.anchor.lines")
	AttrAnchorRoot  = attribute.Key("guardian.anchor.root")

	AttrHTTPMethod = attribute.Key("http.request.method")
	AttrHTTPRoute  = attribute.Key("http.route")
	AttrHTTPStatus = attribute.Key("http.response.status_code")
)

// HTTPAttributes describes an incoming request.
func HTTPAttributes(method, route string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrHTTPMethod.String(method),
		AttrHTTPRoute.String(route),
	}
}

// HTTPStatusAttribute records the response status code.
func HTTPStatusAttribute(code int) attribute.KeyValue {
	return AttrHTTPStatus.Int(code)
}

// VerdictAttributes describes a check outcome.
func VerdictAttributes(mode, rulesetHash string, cached, passed bool, violations []int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrMode.String(mode),
		AttrRulesetHash.String(rulesetHash),
		AttrCached.Bool(cached),
		AttrPassed.Bool(passed),
		AttrViolations.IntSlice(violations),
	}
}

// AnchorAttributes describes an anchoring pass.
func AnchorAttributes(lines int, root string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrAnchorLines.Int(lines),
		AttrAnchorRoot.String(root),
	}
}
