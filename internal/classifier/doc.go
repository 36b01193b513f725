// Package classifier renders the PE node groups that route compilers to
// their availability group's PuppetDB and database, and applies them
// through the node classifier API on the primary.
//
// Requests are issued with curl from the primary using its own agent
// certificate, which the classifier trusts.
package classifier
