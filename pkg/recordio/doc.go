/*
Package recordio decodes the cluster's RecordIO framing: a decimal ASCII
length, a newline, then exactly that many bytes of UTF-8 JSON. It is used to
read both the scheduler's SUBSCRIBE event stream and an agent's
ATTACH_CONTAINER_OUTPUT stream — any streaming HTTP response body the
cluster frames this way.
*/
package recordio
