// Package formats checks the structure of a model answer: the confidence
// tag, the [uncertain] tag and the opt-in reasoning micro-formats.
//
// These are objective format rules that sit beside the directive ruleset.
// They never change a verdict; they are reported by "guardian lint" and
// POST /v1/lint.
//
// Micro-formats only apply when the answer opts into them with a marker
// line:
//
//	Premise: / Inference:   inference at most 20 words, ending with a period
//	Related:                next line at most 25 words, the one after at most 30
//	First-principles        restatement at most 15 words, exactly two bullets,
//	                        section at most 100 words
package formats
