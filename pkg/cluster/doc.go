/*
Package cluster defines the cluster's v1 scheduler and agent-operator JSON
wire vocabulary, and the small amount of logic that operates directly on it:
building a TaskInfo from a RequestedTaskInfo, parsing an OFFERS event into
types.Offer values, and deciding whether an offer satisfies a request.

Field names on every exported struct are bit-exact with the cluster's wire
protocol (see spec §6.3) — this package is a JSON contract, not a
convenience wrapper, so renaming a field to be more idiomatic would break
interoperability with the master and its agents.
*/
package cluster
