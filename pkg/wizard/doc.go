/*
Package wizard drives a respondent through a form one section at a time.

A Controller owns the mutable state of one session: the current section, the
answers, uploaded files and the validation state of asynchronous uniqueness
checks. Visibility is re-derived from the answers on every call; nothing about
the section graph is cached.

# Progression gate

Advance moves forward only when the visible fields of the current section pass
their synchronous checks, no uniqueness error is recorded and no uniqueness
check is in flight. A blocked Advance returns a *BlockedError with one message.

# Asynchronous checks

Blur starts a uniqueness check in its own goroutine. Every check is tagged with
a per-field generation; editing the field starts a new generation. The
StalePolicy decides whether a result for an older generation is discarded or
applied as it arrives. Wait blocks until every check and automatic submission
started by the controller has finished.
*/
package wizard
