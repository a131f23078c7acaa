/*
Package session implements session management and persistence orchestration.

It serialises access to wizard snapshots per session id, within one process with
a reference-counted mutex and across replicas with an optional distributed lock.
*/
package session
