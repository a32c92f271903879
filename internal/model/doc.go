// Package model defines the domain records the strata CLI stores in the
// persistence engine: the project singleton, datasets with their immutable
// file values, plans and the activities that ran them.
//
// Every type here follows the engine's caller contract: it exposes a
// stable, path-like domain id (or accepts a random identity), produces and
// consumes a flat field map, and signals every mutation after initial
// creation by re-registering itself with its owning Database. Business
// rules live in the CLI layer; these types are storage shapes.
package model
