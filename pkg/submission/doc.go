/*
Package submission turns a finished wizard session into a stored Submission.

The Pipeline re-validates every visible field, re-issues uniqueness queries,
translates field ids into label slugs and writes the document to its scoped
collection. Activity registrations are mirrored to domain.GlobalCollection.

Field ids are only translated here. Everything upstream of the pipeline keys
answers by field id, so editing a label never breaks a session in progress.
*/
package submission
