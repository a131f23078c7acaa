/*
Package dsl provides a fluent builder for constructing form definitions in Go.

It is an alternative to YAML, JSON or Markdown definition files and is used by
tests, examples and the demo form of the CLI.

Example usage:

	b := dsl.New("hackathon").Title("Hackathon Registration")

	about := b.Section("about").Title("About you")
	about.Text("name", "Full Name").Required()
	about.Email("email", "Email").Required().Unique().Domain(domain.EmailDomainHitam)
	about.Radio("team", "Do you have a team?", "Yes", "No").Jump("No", "payment")

	b.Section("team").Title("Your team").
		Text("team_name", "Team Name").Required()

	b.Section("payment").Title("Payment").SubmitStep().
		Text("upi", "UPI Transaction ID").Required()

	def, err := b.Build()
*/
package dsl
