// Package market holds the pure, side-effect free normalization rules shared
// by the scrapers and the reconciliation engine: market id extraction from
// URLs, option cleaning and inference, and winner label mapping. Every
// function here is best-effort over noisy scraped text and never panics.
package market
