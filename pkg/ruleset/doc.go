// Package ruleset defines the governance ruleset data model and loads it from
// JSON or YAML documents.
//
// A Ruleset is an ordered list of Directives. Each Directive carries a Tier
// (BLOCK or WARN) and zero or more machine-checkable Checks. Check is a closed
// set of variants: RegexForbid, RegexRequire, LuhnCardForbid, SemanticForbid,
// MaxWords and Unknown. Unrecognized check types load as Unknown so that they
// surface as advisory findings instead of being silently ignored.
//
// The identity of a ruleset is the canonical SHA-256 of the parsed document
// (see package canonical). Rulesets are immutable once loaded; Source reloads
// them wholesale when the backing file changes.
//
// # Document format
//
//	{
//	  "name": "baseline",
//	  "version": "1.0",
//	  "directives": [
//	    {"id": 3, "title": "No government identifiers", "tier": "BLOCK",
//	     "checks": [{"type": "regex_forbid",
//	                 "patterns": {"us_ssn": "\\b\\d{3}-\\d{2}-\\d{4}\\b"}}]}
//	  ]
//	}
//
// A bare top-level array of directives is accepted as a legacy shape.
package ruleset
