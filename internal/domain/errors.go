package domain

import "errors"

// ErrEmptyCorpus is returned when scoring is requested for a product with no
// stored reviews. It is a defined "no score" outcome, not a failure.
var ErrEmptyCorpus = errors.New("no reviews for product")

// ErrScoreNotFound is returned when a score is requested for a product that
// has never been scored.
var ErrScoreNotFound = errors.New("score not computed")
