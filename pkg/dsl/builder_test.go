package dsl

import (
	"context"
	"testing"

	"github.com/aretw0/formflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_RegistrationFlow(t *testing.T) {
	b := New("hackathon").Title("Hackathon Registration")

	about := b.Section("about").Title("About you")
	about.Text("name", "Full Name").Required()
	about.Email("email", "Email").Required().Unique().Domain(domain.EmailDomainHitam)
	about.Radio("team", "Do you have a team?", "Yes", "No").Jump("No", "payment")

	b.Section("team").Title("Your team").
		Text("team_name", "Team Name").Required().
		Section().ShowIf("team", domain.ConditionEquals, "Yes")

	b.Section("payment").SubmitStep().
		Text("upi", "UPI Transaction ID").Required()

	def, err := b.Build()
	require.NoError(t, err)

	require.Len(t, def.Sections, 3)
	assert.Equal(t, "Hackathon Registration", def.Title)
	assert.Equal(t, "About you", def.Sections[0].Title)
	assert.Equal(t, "payment", def.Sections[2].Title, "title defaults to the id")

	email, ok := def.Field("email")
	require.True(t, ok)
	assert.True(t, email.Required)
	assert.True(t, email.IsUnique)
	assert.Equal(t, domain.EmailDomainHitam, email.EmailDomain)

	team, _ := def.Field("team")
	assert.Equal(t, []domain.Option{{ID: "team-opt-1", Label: "Yes"}, {ID: "team-opt-2", Label: "No"}}, team.Options)
	assert.Equal(t, domain.TargetList{"payment"}, team.ConditionalMapping["No"])

	assert.True(t, def.Sections[1].Conditional.Active())
	assert.True(t, def.Sections[2].IsSubmit())
}

func TestBuilder_SectionIsReused(t *testing.T) {
	b := New("f")
	b.Section("a").Text("x", "X")
	b.Section("a").Text("y", "Y")

	def := b.MustBuild()
	require.Len(t, def.Sections, 1)
	assert.Len(t, def.Sections[0].Fields, 2)
}

func TestBuilder_InvalidDefinition(t *testing.T) {
	b := New("dup")
	b.Section("a").Text("x", "X")
	b.Section("b").Text("x", "Again")

	_, err := b.Build()
	var defErr *domain.DefinitionError
	assert.ErrorAs(t, err, &defErr)
}

func TestBuilder_Store(t *testing.T) {
	b := New("contact").Title("Contact")
	b.Section("main").Textarea("msg", "Message").Required()

	store, err := b.Store()
	require.NoError(t, err)

	def, err := store.GetFormDefinition(context.Background(), "contact")
	require.NoError(t, err)
	assert.Equal(t, "Contact", def.Title)
}

func TestFieldBuilder_SubmitOn(t *testing.T) {
	b := New("rsvp")
	b.Section("a").Radio("coming", "Coming?", "Yes", "No").SubmitOn("No")

	def := b.MustBuild()
	f, _ := def.Field("coming")
	assert.True(t, f.ConditionalMapping["No"].Submits())
}
