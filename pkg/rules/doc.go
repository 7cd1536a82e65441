// Package rules evaluates text against a ruleset and produces findings.
//
// Evaluation walks every directive and every check in document order, so the
// findings for identical inputs are identical and diffable. Semantic checks
// run only when requested and require a SemanticMatcher; requesting them
// without a matcher is a programming error and panics.
//
// Levels follow the directive tier: BLOCK directives yield violations, WARN
// directives yield advisories. Unknown check types, directives without checks
// and semantic backend failures always yield advisories so that they stay
// visible without failing the verdict.
package rules
