/*
Package types defines the core data structures shared across rexe.

This package contains the value types that describe a single run: the user's
resource request, the offers the master proposes, and the mutable scheduling
state that tracks how far a run has progressed. These types are used by the
cluster and scheduler packages and the CLI for request validation, offer
matching, and state tracking. They carry no behavior beyond small
value-level helpers (attribute and volume flag parsing, attribute matching) — the wire
encoding lives in pkg/cluster, and the state machine lives in pkg/scheduler.

# Core Types

Request:
  - RequestedTaskInfo: the user's resource requirements, executor selection,
    command line, and run options. Immutable once constructed.
  - AttrPredicate: a single "name=value" or "name=/regex/" attribute match.
  - VolumeMount: a host_path:container_path:mode entry.

Offers:
  - Offer: a single agent's proposed resources and attributes, parsed from an
    OFFERS event.

Scheduling state:
  - SchedulerState: Started, Subscribed, Scheduled, or Running, in that
    monotonic order.
  - Selection: the agent and task chosen once a run reaches Scheduled.
*/
package types
