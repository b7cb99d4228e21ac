// Package preflight runs the system checks docsearch needs before it can
// index: free disk space and write access under the storage root, the file
// descriptor limit, and any service-specific checks the caller supplies
// (external tools, the index, the catalog).
//
//	checker := preflight.New()
//	results := checker.Run(ctx,
//	    checker.DiskSpace(root),
//	    checker.WritePermissions(root),
//	    checker.FileDescriptors(),
//	)
//	if preflight.HasCriticalFailures(results) {
//	    // Handle failures
//	}
//
// A marker file in the storage root records a passing run so long-running
// commands only check once.
package preflight
