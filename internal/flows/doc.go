// Package flows holds the pure session-lifecycle flow logic, parameterized
// by small dependency structs so each flow is testable without a network
// or a manager instance. The root package builds the dependency sets once
// and delegates to the matching flow.
package flows
