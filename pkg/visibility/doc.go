// Package visibility derives which sections and fields of a form are shown for a
// given set of answers.
//
// Everything here is a pure function of the definition and the answers. Callers
// re-run Resolve after every answer change instead of caching the result.
package visibility
