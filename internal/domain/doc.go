// Package domain models the per-day risk picture assembled from public
// holidays, school holidays, industry events, and historical weather.
//
// # Data Conventions
//
// Dates:
//
//	All source records are projected onto a day-indexed timeline keyed by
//	ISO dates ("2006-01-02"). Day keys are UTC midnights; upstream
//	timestamps are truncated before merging. Interval records (school
//	holidays, industry events) are clipped to the analysis range and then
//	expanded to one entry per covered day.
//
// Proxy hub countries:
//
//	A small set of country codes (IL, AE, CN by default) is used as a
//	heuristic stand-in for holidays with broad cross-border cultural or
//	religious reach. A holiday reported under a hub country code is
//	classified as "global impact"; anything else is a local holiday in the
//	analysis target region. The set is injected configuration, not a
//	constant, so alternate hub sets can be evaluated.
//
// Risk classification:
//
//	Per-day risk is a strict priority order rather than a weighted score:
//	a local holiday always classifies the day "high" because it directly
//	blocks the event; global-impact holidays, watchlist conflicts, school
//	holidays, and industry events are advisory and classify "caution";
//	everything else is "safe".
//
// Match confidence:
//
//	Industry-event match confidence is a fixed threshold ladder over the
//	total number of tracked events matching the active filters (date range
//	excluded): >=50 HIGH, >=10 MEDIUM, >0 LOW, 0 NONE. The thresholds are
//	business constants and part of the output contract.
//
// Weather:
//
//	Weather is resolved once per (city, calendar month); every day in that
//	month shares the same immutable MonthlyWeatherSummary by reference.
//	Summaries are never mutated after resolution.
package domain
