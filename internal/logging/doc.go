// Package logging sets up structured JSON logging to a size-rotated file
// under the docsearch storage root, optionally teed to stderr, and reads
// those files back for `docsearch logs`.
package logging
