// ABOUTME: Tests for the per-contact upsert flow against a fake EveryAction API
// ABOUTME: Covers create vs update, code application, fill-empty merging and failure handling
package sync

import (
	"context"
	"net/http"
	"testing"

	"github.com/hotgluexyz/target-everyaction/everyaction"
	"github.com/hotgluexyz/target-everyaction/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertAppliesActivistCode(t *testing.T) {
	api := newFakeAPI()
	api.activistCodes = []map[string]any{
		{"activistCodeId": 7, "name": "Volunteer", "status": "Active"},
	}
	upserter := NewUpserter(newFakeClient(t, api), UpserterOptions{})

	result, err := upserter.Upsert(context.Background(), models.Contact{
		FirstName: "Jane",
		Email:     "jane@x.org",
		Lists:     []string{"Volunteer"},
	})
	require.NoError(t, err)

	require.NotNil(t, result.VanID)
	assert.Equal(t, 101, *result.VanID)
	assert.True(t, result.Success)
	assert.False(t, result.State.IsUpdated)
	assert.Equal(t, []string{"ActivistCode:Volunteer"}, result.State.AppliedCodes)

	upserts := api.calls(http.MethodPost, "people/findOrCreate")
	require.Len(t, upserts, 1)
	assert.Equal(t, "Jane", upserts[0].Body["firstName"])

	canvass := api.calls(http.MethodPost, "people/101/canvassResponses")
	require.Len(t, canvass, 1)
	responses := canvass[0].Body["responses"].([]any)
	require.Len(t, responses, 1)
	assert.Equal(t, float64(7), responses[0].(map[string]any)["activistCodeId"])
	assert.Equal(t, "Apply", responses[0].(map[string]any)["action"])

	assert.Empty(t, api.calls(http.MethodPost, "codes"))
	assert.Empty(t, api.calls(http.MethodGet, "codes"), "no source code or tags requested")
}

func TestUpsertMatchedContactIsUpdate(t *testing.T) {
	api := newFakeAPI()
	api.addPerson(55, map[string]any{"emails": []any{map[string]any{"email": "jane@x.org"}}})
	upserter := NewUpserter(newFakeClient(t, api), UpserterOptions{})

	result, err := upserter.Upsert(context.Background(), models.Contact{FirstName: "Jane", Email: "JANE@x.org"})
	require.NoError(t, err)

	require.NotNil(t, result.VanID)
	assert.Equal(t, 55, *result.VanID)
	assert.True(t, result.State.IsUpdated)
	assert.False(t, result.State.Merged)
	assert.Empty(t, api.calls(http.MethodGet, "people/55"), "blind upsert never fetches")
}

func TestUpsertFailureSkipsCodes(t *testing.T) {
	api := newFakeAPI()
	api.fail(http.MethodPost, "people/findOrCreate", http.StatusBadRequest)
	upserter := NewUpserter(newFakeClient(t, api), UpserterOptions{})

	result, err := upserter.Upsert(context.Background(), models.Contact{
		FirstName:  "Jane",
		Lists:      []string{"Volunteer"},
		LeadSource: "Web",
	})
	require.Error(t, err)
	assert.True(t, everyaction.IsInvalidPayload(err))

	assert.Nil(t, result.VanID)
	assert.False(t, result.Success)
	assert.Contains(t, result.State.Error, "rejected people/findOrCreate")
	assert.Empty(t, api.calls(http.MethodGet, "activistCodes"))
	assert.Empty(t, api.calls(http.MethodGet, "codes"))
}

func TestUpsertSourceCodeAndTags(t *testing.T) {
	api := newFakeAPI()
	api.codes = []map[string]any{
		{"codeId": 3, "name": "Web", "codeType": "SourceCode"},
		{"codeId": 4, "name": "VIP", "codeType": "Tag"},
	}
	upserter := NewUpserter(newFakeClient(t, api), UpserterOptions{})

	result, err := upserter.Upsert(context.Background(), models.Contact{
		FirstName:  "Jane",
		LeadSource: "web",
		Tags:       []string{"vip", "Newsletter", "newsletter"},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)

	created := api.calls(http.MethodPost, "codes")
	require.Len(t, created, 1, "only the unknown tag is created, once")
	assert.Equal(t, "Newsletter", created[0].Body["name"])
	assert.Equal(t, "Tag", created[0].Body["codeType"])

	attached := api.calls(http.MethodPost, "people/101/codes")
	require.Len(t, attached, 3)
	assert.Equal(t, float64(3), attached[0].Body["codeId"])
	assert.Equal(t, float64(4), attached[1].Body["codeId"])
	assert.Equal(t, float64(901), attached[2].Body["codeId"])

	assert.Equal(t, []string{"SourceCode:web", "Tag:vip", "Tag:Newsletter"}, result.State.AppliedCodes)
	assert.Len(t, api.calls(http.MethodGet, "codes"), 1, "catalog is read once per upsert")
}

func TestUpsertCodeFailureKeepsContact(t *testing.T) {
	api := newFakeAPI()
	api.activistCodes = []map[string]any{
		{"activistCodeId": 7, "name": "Volunteer"},
		{"activistCodeId": 8, "name": "Donor"},
	}
	api.fail(http.MethodPost, "people/101/canvassResponses", http.StatusNotFound)
	upserter := NewUpserter(newFakeClient(t, api), UpserterOptions{})

	result, err := upserter.Upsert(context.Background(), models.Contact{
		FirstName: "Jane",
		Lists:     []string{"Volunteer", "Donor", "Phone Banker"},
		Tags:      []string{"VIP"},
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, []string{"ActivistCode:Volunteer", "ActivistCode:Donor"}, result.State.FailedCodes)
	assert.Equal(t, []string{"ActivistCode:Phone Banker"}, result.State.MissingCodes)
	assert.Equal(t, []string{"Tag:VIP"}, result.State.AppliedCodes)
	assert.Len(t, api.calls(http.MethodPost, "people/101/canvassResponses"), 2)
}

func TestUpsertOnlyEmptyFieldsMerges(t *testing.T) {
	api := newFakeAPI()
	api.addPerson(55, map[string]any{
		"firstName": "Janet",
		"lastName":  "",
		"emails": []any{
			map[string]any{"email": "jane@x.org", "dateCreated": "2020-01-01T00:00:00Z"},
		},
		"phones": []any{
			map[string]any{"phoneId": 1, "phoneNumber": "2025550143", "isCellStatus": map[string]any{"statusId": 1}},
		},
		"districts": []any{map[string]any{"name": "CD 1"}},
	})
	upserter := NewUpserter(newFakeClient(t, api), UpserterOptions{OnlyUpsertEmptyFields: true})

	result, err := upserter.Upsert(context.Background(), models.Contact{
		FirstName:    "Jane",
		LastName:     "Doe",
		Email:        "jane@x.org",
		PhoneNumbers: []models.Phone{{Number: "+1 202 555 0143", Type: "C"}},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.State.Merged)
	assert.True(t, result.State.IsUpdated)

	upserts := api.calls(http.MethodPost, "people/findOrCreate")
	require.Len(t, upserts, 1)
	body := upserts[0].Body

	assert.Equal(t, float64(55), body["vanId"])
	assert.Equal(t, "Janet", body["firstName"])
	assert.Equal(t, "Doe", body["lastName"])
	assert.NotContains(t, body, "districts")

	emails := body["emails"].([]any)
	require.Len(t, emails, 1)
	assert.NotContains(t, emails[0].(map[string]any), "dateCreated")

	phones := body["phones"].([]any)
	require.Len(t, phones, 1)
	phone := phones[0].(map[string]any)
	assert.Equal(t, "2025550143", phone["phoneNumber"])
	assert.Equal(t, "C", phone["phoneType"])
	assert.NotContains(t, phone, "isCellStatus")
}

func TestUpsertLocatesByVanIDFirst(t *testing.T) {
	api := newFakeAPI()
	api.addPerson(55, map[string]any{"firstName": "Janet"})
	upserter := NewUpserter(newFakeClient(t, api), UpserterOptions{OnlyUpsertEmptyFields: true})

	vanID := 55
	result, err := upserter.Upsert(context.Background(), models.Contact{
		VanID:     &vanID,
		FirstName: "Jane",
		Email:     "other@x.org",
	})
	require.NoError(t, err)
	assert.True(t, result.State.Merged)

	assert.Len(t, api.calls(http.MethodGet, "people/55"), 1)
	assert.Empty(t, api.calls(http.MethodPost, "people/find"))

	body := api.calls(http.MethodPost, "people/findOrCreate")[0].Body
	assert.Equal(t, "Janet", body["firstName"])
	emails := body["emails"].([]any)
	assert.Equal(t, "other@x.org", emails[0].(map[string]any)["email"])
}

func TestUpsertLocateFailureFallsBackToIncoming(t *testing.T) {
	api := newFakeAPI()
	api.fail(http.MethodPost, "people/find", http.StatusForbidden)
	upserter := NewUpserter(newFakeClient(t, api), UpserterOptions{OnlyUpsertEmptyFields: true})

	result, err := upserter.Upsert(context.Background(), models.Contact{FirstName: "Jane", Email: "jane@x.org"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.State.Merged)

	body := api.calls(http.MethodPost, "people/findOrCreate")[0].Body
	assert.Equal(t, map[string]any{
		"firstName": "Jane",
		"emails":    []any{map[string]any{"email": "jane@x.org"}},
	}, body)
}

func TestUpsertUnmatchedEmailUpsertsIncoming(t *testing.T) {
	api := newFakeAPI()
	upserter := NewUpserter(newFakeClient(t, api), UpserterOptions{OnlyUpsertEmptyFields: true})

	result, err := upserter.Upsert(context.Background(), models.Contact{FirstName: "Jane", Email: "new@x.org"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.State.Merged)
	assert.False(t, result.State.IsUpdated)
	assert.Len(t, api.calls(http.MethodPost, "people/find"), 1)
}

func TestPreviewDoesNotWrite(t *testing.T) {
	api := newFakeAPI()
	api.addPerson(55, map[string]any{
		"firstName": "Janet",
		"emails":    []any{map[string]any{"email": "jane@x.org"}},
	})
	upserter := NewUpserter(newFakeClient(t, api), UpserterOptions{OnlyUpsertEmptyFields: true})

	preview, err := upserter.Preview(context.Background(), models.Contact{FirstName: "Jane", LastName: "Doe", Email: "jane@x.org"})
	require.NoError(t, err)

	require.NotNil(t, preview.Existing)
	assert.Equal(t, "Janet", preview.Payload["firstName"])
	assert.Equal(t, "Doe", preview.Payload["lastName"])
	assert.Empty(t, api.calls(http.MethodPost, "people/findOrCreate"))
}
