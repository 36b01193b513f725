// Package identity reads trusted facts from Puppet agent certificates.
//
// Role and availability group are stored as certificate extensions under
// Puppet's registered OID arc. Both have a current and a legacy key; lookups
// walk an ordered key list and the first present key wins.
package identity
