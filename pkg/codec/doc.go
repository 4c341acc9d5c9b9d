// Package codec converts between Python syntax trees and knowledge graphs.
//
// [Encode] walks a [pyast.Module] depth first and emits one node per
// statement, definition, parameter, expression, literal and operator,
// connected by the relation vocabulary in package kg. [Decode] reverses
// the mapping. For any module in the supported grammar,
//
//	Decode(Encode(m))
//
// is equal to m up to source layout: line numbers of statements survive,
// columns and comments do not.
//
// # Ordering
//
// Statements and definitions carry an "order" attribute (the source line
// when known, else an insertion counter) and a "seq" attribute (always
// the insertion counter). Siblings are sorted by (order, seq, id), which
// keeps several statements on one line in source order.
//
// # Contexts
//
// Expression contexts are not stored. The decoder assigns Store or Del
// from the position a target occupies: assignment and loop targets, with
// items, comprehension targets and walrus targets are Store; del targets
// are Del; everything else is Load.
//
// # Unsupported input
//
// Encoding is total. Constructs outside the supported grammar arrive as
// [pyast.BadStmt] or [pyast.BadExpr] and are stored as placeholder nodes
// ("Other" statements and "other" expressions) that decode back to the
// same placeholders. Unknown kinds met while decoding become pass or None
// and are recorded in [Decoder.Warnings].
//
// # Failure
//
// Decode fails with *errors.IntegrityError when a required relation is
// missing, a singular relation has several destinations, an edge points
// at an absent node, or positional defaults are not a trailing suffix.
// [WithLenient] downgrades such failures to per-statement warnings. Both
// directions fail with *errors.DepthError past [WithMaxDepth].
package codec
