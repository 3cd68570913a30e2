// Package placeholder defines the vocabulary of certificate placeholder tokens
// and substitutes them with values from a data record.
//
// The catalog is the single source of truth: the replace rules used by Replace
// are generated from it, so every catalog key is always substitutable and no
// other token is ever touched. Substitution is a single literal pass, values
// containing token text are never expanded again.
package placeholder
