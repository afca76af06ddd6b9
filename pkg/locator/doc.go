/*
Package locator resolves a user-supplied master endpoint to the current
master's base URL.

The endpoint is either an absolute http(s) URL, returned as given apart from
a trailing slash being removed, or a
ZooKeeper ensemble connect string. In the latter case the package connects
to the ensemble, lists the root's children, and reads the lexicographically
smallest "json.info_*" node — the cluster publishes one such node per master
and sorts leadership by sequence number, so the smallest name is the current
leader. A short HTTP probe then decides whether the discovered host speaks
https or http.
*/
package locator
