// Package pyast is the Python syntax tree the codec encodes and decodes.
//
// Statement and expression nodes mirror Python's ast module. [Format]
// prints a tree back to source; the output parses to an equal tree, so
// source produced by decoding a graph is stable under repeated round trips.
package pyast
