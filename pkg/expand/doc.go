// Package expand turns an anchor date and a recurrence rule into the ordered
// list of future occurrence dates.
//
// Expansion is pure and deterministic: the same anchor, rule and options
// always produce the same dates. The n-th occurrence is computed from the
// anchor, never from the previous occurrence, so a date clamped to the end
// of a short month does not drag later months with it:
//
//	Jan 31 -> Feb 29 -> Mar 31 -> Apr 30
//
// Every expansion is bounded by a safety cap (security.MaxOccurrences by
// default). Reaching the cap is not an error; the Expansion reports
// Truncated so callers can disclose "series truncated at N occurrences".
package expand
