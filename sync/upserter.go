// ABOUTME: Per-contact upsert into EveryAction
// ABOUTME: Maps, optionally merges over the stored person, calls findOrCreate, then applies codes
package sync

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hotgluexyz/target-everyaction/everyaction"
	"github.com/hotgluexyz/target-everyaction/merge"
	"github.com/hotgluexyz/target-everyaction/models"
	"github.com/rs/zerolog"
)

// Upserter writes one contact at a time. It holds no per-record state.
type Upserter struct {
	client    *everyaction.Client
	onlyEmpty bool
	log       zerolog.Logger
}

// UpserterOptions configures NewUpserter.
type UpserterOptions struct {
	// OnlyUpsertEmptyFields fetches the stored person first and only fills its gaps.
	OnlyUpsertEmptyFields bool
	Logger                *zerolog.Logger
}

// Preview is what an upsert would send, without sending it.
type Preview struct {
	Mapped   models.MappedContact
	Existing merge.Record
	Payload  merge.Record
}

func NewUpserter(client *everyaction.Client, opts UpserterOptions) *Upserter {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Upserter{
		client:    client,
		onlyEmpty: opts.OnlyUpsertEmptyFields,
		log:       logger.With().Str("component", "upserter").Logger(),
	}
}

// Upsert sends contact to people/findOrCreate and applies its pending codes.
// A returned error means the contact itself was not written; code failures
// are reported in the result state only.
func (u *Upserter) Upsert(ctx context.Context, contact models.Contact) (models.UpsertResult, error) {
	log := u.log.With().Str("source_id", contact.SourceID()).Logger()

	preview, err := u.Preview(ctx, contact)
	if err != nil {
		return failedResult(err), err
	}

	state := models.UpsertState{Merged: preview.Existing != nil}

	resp, err := u.client.FindOrCreate(ctx, preview.Payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to upsert contact")
		result := failedResult(err)
		result.State.Merged = state.Merged
		return result, fmt.Errorf("failed to upsert contact: %w", err)
	}

	if (resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated) || resp.VanID == nil {
		err := fmt.Errorf("unexpected findOrCreate response: status %d", resp.StatusCode)
		log.Error().Err(err).Msg("failed to upsert contact")
		result := failedResult(err)
		result.State.Merged = state.Merged
		return result, err
	}

	vanID := *resp.VanID
	state.Success = true
	state.IsUpdated = !resp.Created()
	log.Info().Int("van_id", vanID).Bool("is_updated", state.IsUpdated).Msg("upserted contact")

	u.applyCodes(ctx, vanID, preview.Mapped.Pending, &state)

	return models.UpsertResult{VanID: &vanID, Success: true, State: state}, nil
}

// Preview maps contact and, when filling empty fields only, merges it over
// the stored person. Nothing is written.
func (u *Upserter) Preview(ctx context.Context, contact models.Contact) (Preview, error) {
	mapped := MapContact(contact)

	payload, err := PersonRecord(mapped.Person)
	if err != nil {
		return Preview{}, err
	}

	preview := Preview{Mapped: mapped, Payload: payload}
	if !u.onlyEmpty {
		return preview, nil
	}

	existing, err := u.locate(ctx, contact)
	if err != nil {
		u.log.Warn().Err(err).Str("source_id", contact.SourceID()).
			Msg("failed to fetch existing contact, upserting incoming fields as is")
		return preview, nil
	}
	if existing == nil {
		return preview, nil
	}

	preview.Existing = existing
	preview.Payload = merge.CleanForWrite(merge.FillEmpty(existing, payload))
	return preview, nil
}

// locate finds the stored person by VAN ID first, then by email.
func (u *Upserter) locate(ctx context.Context, contact models.Contact) (merge.Record, error) {
	email := strings.TrimSpace(contact.Email)

	if contact.VanID != nil {
		existing, err := u.client.FindByVanID(ctx, *contact.VanID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if email != "" && !hasEmail(existing, email) {
				u.log.Warn().Int("van_id", *contact.VanID).Str("email", email).
					Msg("person found by van id does not carry the incoming email")
			}
			return existing, nil
		}
	}

	if email == "" {
		return nil, nil
	}
	return u.client.FindByEmail(ctx, email)
}

func hasEmail(record merge.Record, email string) bool {
	items, _ := record["emails"].([]any)
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if s, ok := m["email"].(string); ok && strings.EqualFold(strings.TrimSpace(s), email) {
			return true
		}
	}
	return false
}

// applyCodes applies every pending code to vanID. Each code is independent:
// a failure is logged, recorded in state and skipped.
func (u *Upserter) applyCodes(ctx context.Context, vanID int, pending models.PendingCodes, state *models.UpsertState) {
	if pending.Empty() {
		return
	}
	log := u.log.With().Int("van_id", vanID).Logger()

	if len(pending.ActivistCodes) > 0 {
		resolved, missing, err := u.client.ResolveActivistCodes(ctx, pending.ActivistCodes)
		if err != nil {
			log.Error().Err(err).Msg("failed to resolve activist codes")
			for _, name := range pending.ActivistCodes {
				state.FailedCodes = append(state.FailedCodes, codeLabel("ActivistCode", name))
			}
		}
		for _, name := range missing {
			state.MissingCodes = append(state.MissingCodes, codeLabel("ActivistCode", name))
		}
		for _, name := range pending.ActivistCodes {
			id, ok := resolved[name]
			if !ok {
				continue
			}
			label := codeLabel("ActivistCode", name)
			if err := u.client.ApplyActivistCode(ctx, vanID, id); err != nil {
				log.Error().Err(err).Str("activist_code", name).Msg("failed to apply activist code")
				state.FailedCodes = append(state.FailedCodes, label)
				continue
			}
			state.AppliedCodes = append(state.AppliedCodes, label)
		}
	}

	catalog := u.client.NewCodeCatalog()
	attach := func(name, kind string, extra map[string]any) {
		label := codeLabel(kind, name)
		id, err := catalog.GetOrCreate(ctx, name, kind, extra)
		if err == nil {
			err = u.client.AttachCode(ctx, vanID, id)
		}
		if err != nil {
			log.Error().Err(err).Str("code", name).Str("kind", kind).Msg("failed to apply code")
			state.FailedCodes = append(state.FailedCodes, label)
			return
		}
		state.AppliedCodes = append(state.AppliedCodes, label)
	}

	if pending.SourceCode != "" {
		attach(pending.SourceCode, models.CodeKindSourceCode, nil)
	}
	for _, tag := range pending.Tags {
		attach(tag, models.CodeKindTag, everyaction.TagAttributes())
	}
}

func codeLabel(kind, name string) string {
	return kind + ":" + name
}

func failedResult(err error) models.UpsertResult {
	return models.UpsertResult{State: models.UpsertState{Error: err.Error()}}
}
