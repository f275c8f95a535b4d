//go:build !embed

package main

import "embed"

// Empty when the embed tag is not set; the detector then reads
// Engine.ModelDir as is.
var modelFiles embed.FS
