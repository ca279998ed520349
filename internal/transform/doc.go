// Package transform projects device records into the public state tree
// that observers receive.
//
// A Transformer only selects and renames fields. It never decodes and has
// no side effects, so several can be composed or swapped per client type
// without touching the ingest path. Given the same devices, a transformer
// always yields the same tree.
package transform
