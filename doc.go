/*
Package formflow is an engine for dynamic multi-section forms: registration and
feedback forms whose sections appear or disappear as the respondent answers.

A form definition is an ordered list of sections. Choice fields can jump to later
sections or end the form, sections and fields can be shown only when another
answer matches, and unique fields are checked against stored submissions while
the respondent types.

# Concept

The engine is split the way a wizard is used. Definitions come from a
DefinitionStore (memory, files or a Loam repository). Each respondent gets a
session driven by a wizard controller that holds the answers, the current section
and the validation state. Every change is persisted as a Snapshot through a
SessionStore, so a session can be resumed on another replica. Submissions go
through a pipeline that re-validates everything and writes the payload to a
SubmissionStore (memory, Redis or SQLite).

# Usage

	b := dsl.New("contact")
	b.Section("main").Email("email", "Email").Required().Unique()
	defs, err := b.Store()
	if err != nil {
		log.Fatal(err)
	}

	eng, err := formflow.New(defs)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	snap, err := eng.Start(ctx, "contact", formflow.DefaultScope("contact"))
	if err != nil {
		log.Fatal(err)
	}

	_, err = eng.Do(ctx, snap.SessionID, func(ctx context.Context, c *wizard.Controller) error {
		if err := c.SetAnswer(ctx, "email", "ada@example.com"); err != nil {
			return err
		}
		_, err := c.Advance(ctx)
		return err
	})

The same engine backs the HTTP server, the MCP server and the terminal runner
under cmd/formflow.
*/
package formflow
