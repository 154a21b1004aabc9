// Package inbox turns JSON descriptor files dropped into a directory into
// job submissions.
//
// A descriptor is {"sourceUrl": ..., "userId": ..., "jobId": ...}. Accepted
// descriptors move to accepted/; anything that cannot be submitted moves to
// rejected/ next to a .err file holding the reason. Writers should create
// descriptors under a temporary name and rename them into place; writes are
// also debounced so a slowly written file is read once it settles.
package inbox
