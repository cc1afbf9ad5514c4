// Package extractors provides implementations of the Extractor interface
// for the supported upload formats. Each extractor turns the bytes of one
// file type into plain text plus structural metadata.
//
// Extractors are registered with the Registry at startup via RegisterDefaults.
package extractors
