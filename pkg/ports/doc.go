/*
Package ports defines the driven ports (interfaces) for the formflow engine.

These interfaces decouple the wizard and the submission pipeline from the
collaborators they depend on, so the same engine runs against in-memory,
file, Loam, Redis or SQLite backends.

# Key Interfaces

  - DefinitionStore: Loads FormDefinitions by id.
  - SubmissionStore: Persists submissions and answers uniqueness queries.
  - FileUploader: Turns a binary blob into an UploadedFile descriptor.
  - SessionStore: Persists wizard Snapshots between requests.
  - DistributedLocker: Provides distributed locking for concurrent session access.
*/
package ports
