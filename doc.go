// Package sifql contains the core contracts of Sifql, the map-side execution layer of a distributed SQL engine.
// This root package defines the types shared between the aggregation framework (functions, partial states,
// memory accounting) and the collect orchestration (collect phases, routing, collectors and row receivers),
// and is an excellent overview of the module's key concepts.
package sifql
