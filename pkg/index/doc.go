/*
Package index implements the two index shapes tables may declare over one
or more columns: a unique point index and a non-unique multi-valued index,
both addressable through one capability interface so callers never branch
on shape.

Keys are pkg/sats values, typically a Product of the indexed columns in
declared order, so composite comparison is exactly per-field comparison in
that order, matching the total order pkg/sats.Compare already implements.
Range bounds are algebraic-value bounds under that same order.
*/
package index
