// Package hcl provides the HCL implementation of config.Loader. It is
// responsible for file discovery, parsing, expression evaluation against the
// process environment, and merging every document into a config.Model.
package hcl
