// Package patch holds the public state tree and the structural diff that
// turns one snapshot into the next.
//
// Object is an insertion-ordered JSON object. Diff compares two objects
// recursively and emits the minimal ordered list of add, replace and
// remove operations, addressed with RFC 6901 JSON Pointers. Identical
// subtrees produce no operations. Arrays are compared whole and replaced
// when they differ.
//
// Operation order follows key order: keys of the old object in their
// order (replace or remove), then keys only present in the new object in
// their order (add).
package patch
