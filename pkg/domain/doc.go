/*
Package domain contains the core domain models of the formflow engine.

It defines the declarative form schema (definitions, sections, fields, rules), the
answer containers collected while a user fills a form, and the persisted submission
shape. This package is kept pure and free of external dependencies like I/O or
persistence, following Hexagonal Architecture principles.

# Key Entities

  - FormDefinition: An ordered list of Sections loaded from a definition store.
  - Section: A named group of Fields with optional visibility and navigation rules.
  - Field: A single question, with validation flags and optional conditional jumps.
  - VisibilityRule: A single-field predicate used by sections and fields.
  - Answers / UploadedFiles: The live, field-id keyed values of a session.
  - Submission: The persisted, label-keyed document written at the end of a flow.
  - Snapshot: A serialisable view of a wizard session, used by session stores.
*/
package domain
