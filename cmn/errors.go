// Package cmn provides the error taxonomy and small cross-cutting types
// shared by every phase of the crawl engine.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import (
	"fmt"

	"github.com/pkg/errors"
)

// Taxonomy constants name the seven error classes a phase may observe.
// See spec §7 for the propagation policy attached to each.
const (
	ClassConfigInvalid    = "ConfigInvalid"
	ClassCrawlAlreadyActive = "CrawlAlreadyActive"
	ClassIOFailed         = "IOFailed"
	ClassExtractionFailed = "ExtractionFailed"
	ClassTransformFailed  = "TransformFailed"
	ClassPublishFailed    = "PublishFailed"
	ClassCancelled        = "Cancelled"
)

// TaxonomyError is the common shape of every classified error in this
// module: a class name (see Class* constants), a short message, and the
// underlying cause (possibly nil).
type TaxonomyError struct {
	Class string
	Msg   string
	Cause error
}

func (e *TaxonomyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Class, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Msg)
}

func (e *TaxonomyError) Unwrap() error { return e.Cause }

func newTaxErr(class, format string, args ...interface{}) *TaxonomyError {
	return &TaxonomyError{Class: class, Msg: fmt.Sprintf(format, args...)}
}

func wrapTaxErr(class string, cause error, format string, args ...interface{}) *TaxonomyError {
	return &TaxonomyError{Class: class, Msg: fmt.Sprintf(format, args...), Cause: errors.WithStack(cause)}
}

// ErrConfigInvalid is fatal at validate(); prevents crawl start.
func ErrConfigInvalid(format string, args ...interface{}) error {
	return newTaxErr(ClassConfigInvalid, format, args...)
}

// ErrCrawlAlreadyActive is fatal at CrawlQueue.start when a lockfile is present.
func ErrCrawlAlreadyActive(baseDir string) error {
	return newTaxErr(ClassCrawlAlreadyActive, "lockfile present under %s", baseDir)
}

// ErrIOFailed wraps a filesystem error; fatal to the current document only,
// unless raised from CrawlQueue structural operations (lock/mkdir/rename),
// in which case the caller surfaces it to the orchestrator as a crawl abort.
func ErrIOFailed(cause error, format string, args ...interface{}) error {
	return wrapTaxErr(ClassIOFailed, cause, format, args...)
}

// ErrExtractionFailed is logged as a warning; the document proceeds without
// is_content populated.
func ErrExtractionFailed(cause error, format string, args ...interface{}) error {
	return wrapTaxErr(ClassExtractionFailed, cause, format, args...)
}

// ErrTransformFailed is logged as a warning; the document is replaced with
// a bag-copy of its pre-transform state and continues downstream.
func ErrTransformFailed(cause error, format string, args ...interface{}) error {
	return wrapTaxErr(ClassTransformFailed, cause, format, args...)
}

// ErrPublishFailed is logged; the document file remains on disk for retry.
func ErrPublishFailed(cause error, format string, args ...interface{}) error {
	return wrapTaxErr(ClassPublishFailed, cause, format, args...)
}

// ErrCancelled indicates a cooperative shutdown was observed.
func ErrCancelled(format string, args ...interface{}) error {
	return newTaxErr(ClassCancelled, format, args...)
}

// ClassOf recovers the taxonomy class of err, walking wrapped errors via
// errors.As. Returns "" if err does not carry a TaxonomyError.
func ClassOf(err error) string {
	var t *TaxonomyError
	if errors.As(err, &t) {
		return t.Class
	}
	return ""
}

// IsStructural reports whether class alone marks an error that aborts the
// whole crawl rather than being recovered at the document level: true for
// ConfigInvalid and CrawlAlreadyActive (lockfile present) only. IOFailed,
// which also covers document-level failures, is not reported structural,
// so directory-creation and rename errors are not identified here.
func IsStructural(class string) bool {
	switch class {
	case ClassConfigInvalid, ClassCrawlAlreadyActive:
		return true
	default:
		return false
	}
}
