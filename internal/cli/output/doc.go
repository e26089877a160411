// Package output formats kernelgate-cli results as table, JSON or YAML.
//
// Structs render as FIELD/VALUE tables, slices of structs as one row per
// element. Fields tagged `table:"wide"` only appear with --wide, and
// fields tagged `table:"-"` never do.
package output
