// Package mediatypes provides shared type definitions and utilities for media
// file handling across the media-index application.
//
// This package exists as a dependency-free foundation that can be imported by
// other packages without creating import cycles. It contains primitive types,
// constants, and pure utility functions with no external dependencies beyond
// the standard library.
//
// # Extension Detection
//
// Use GetFileType to determine the type of a file based on its extension:
//
//	ext := strings.ToLower(filepath.Ext(filename))
//	fileType := mediatypes.GetFileType(ext)
//
//	switch fileType {
//	case mediatypes.FileTypeImage:
//	    // Handle image
//	case mediatypes.FileTypeVideo:
//	    // Handle video
//	}
//
// # Special Folders
//
// QuarantineFolder and EditFolder name the subdirectories of the watched root
// that receive relocated files. Scans and queries skip anything under them.
package mediatypes
