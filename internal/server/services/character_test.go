package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilvurson/ai-chat/internal/common"
	"github.com/wilvurson/ai-chat/internal/server/models"
)

func setupCharacters(t *testing.T) (*CharacterService, *fakeRepoManager, *fakeBlobStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	repos := newFakeRepoManager()
	blobs := newFakeBlobStore()
	return NewCharacterService(db, repos, blobs, testLogger()), repos, blobs, mock
}

func validFields() CharacterFields {
	return CharacterFields{
		Name:         "Pirate",
		Description:  "A salty sea dog",
		BasePrompt:   "You are a pirate.",
		GreetingText: "Arrr!",
	}
}

func TestCharacterCreate(t *testing.T) {
	svc, _, blobs, _ := setupCharacters(t)

	character, err := svc.Create(context.Background(), "u1",
		validFields(), &ImageUpload{Data: []byte("png-bytes"), ContentType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, "Pirate", character.Name)
	assert.NotEmpty(t, character.ImageKey)
	assert.Contains(t, blobs.objects, character.ImageKey)

	url, err := svc.ImageURL(context.Background(), character)
	require.NoError(t, err)
	assert.Equal(t, "https://blobs.test/"+character.ImageKey, url)
}

func TestCharacterCreate_NoImage(t *testing.T) {
	svc, _, _, _ := setupCharacters(t)

	character, err := svc.Create(context.Background(), "u1", validFields(), nil)
	require.NoError(t, err)
	assert.Empty(t, character.ImageKey)

	url, err := svc.ImageURL(context.Background(), character)
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestCharacterCreate_MissingRequiredField(t *testing.T) {
	svc, _, _, _ := setupCharacters(t)
	ctx := context.Background()

	for _, mutate := range []func(*CharacterFields){
		func(f *CharacterFields) { f.Name = " " },
		func(f *CharacterFields) { f.BasePrompt = "" },
		func(f *CharacterFields) { f.GreetingText = "" },
	} {
		fields := validFields()
		mutate(&fields)
		_, err := svc.Create(ctx, "u1", fields, nil)
		assert.ErrorIs(t, err, common.ErrInvalidInput)
	}
}

func TestCharacterList_ScopedToOwner(t *testing.T) {
	svc, _, _, _ := setupCharacters(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "u1", validFields(), nil)
	require.NoError(t, err)

	mine, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	theirs, err := svc.List(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func TestCharacterGet_ForeignLooksMissing(t *testing.T) {
	svc, _, _, _ := setupCharacters(t)
	ctx := context.Background()

	character, err := svc.Create(ctx, "u1", validFields(), nil)
	require.NoError(t, err)

	_, err = svc.Get(ctx, "u2", character.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCharacterUpdate_SwapsImage(t *testing.T) {
	svc, _, blobs, _ := setupCharacters(t)
	ctx := context.Background()

	character, err := svc.Create(ctx, "u1",
		validFields(), &ImageUpload{Data: []byte("old"), ContentType: "image/png"})
	require.NoError(t, err)
	oldKey := character.ImageKey

	fields := validFields()
	fields.Name = "Captain"
	updated, err := svc.Update(ctx, "u1", character.ID, fields,
		&ImageUpload{Data: []byte("new"), ContentType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, "Captain", updated.Name)
	assert.NotEqual(t, oldKey, updated.ImageKey)

	assert.NotContains(t, blobs.objects, oldKey, "replaced image must be removed")
	assert.Contains(t, blobs.deletes, oldKey)
}

func TestCharacterUpdate_KeepsImageWhenNoneSupplied(t *testing.T) {
	svc, _, blobs, _ := setupCharacters(t)
	ctx := context.Background()

	character, err := svc.Create(ctx, "u1",
		validFields(), &ImageUpload{Data: []byte("old"), ContentType: "image/png"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, "u1", character.ID, validFields(), nil)
	require.NoError(t, err)
	assert.Equal(t, character.ImageKey, updated.ImageKey)
	assert.Empty(t, blobs.deletes)
}

func TestCharacterUpdate_NotFound(t *testing.T) {
	svc, _, _, _ := setupCharacters(t)

	_, err := svc.Update(context.Background(), "u1", "missing", validFields(), nil)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCharacterDelete_CascadesTranscriptAndImage(t *testing.T) {
	svc, repos, blobs, mock := setupCharacters(t)
	ctx := context.Background()

	character, err := svc.Create(ctx, "u1",
		validFields(), &ImageUpload{Data: []byte("img"), ContentType: "image/png"})
	require.NoError(t, err)

	_, err = repos.turns.Append(ctx, &models.Turn{
		UserID: "u1", CharacterID: character.ID, Role: models.RoleUser, Content: "hi",
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, svc.Delete(ctx, "u1", character.ID))

	_, err = svc.Get(ctx, "u1", character.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	turns, err := repos.turns.ListOrdered(ctx, "u1", character.ID)
	require.NoError(t, err)
	assert.Empty(t, turns, "transcript must go with the character")

	assert.NotContains(t, blobs.objects, character.ImageKey)
}

func TestCharacterDelete_NotFound(t *testing.T) {
	svc, _, _, _ := setupCharacters(t)

	err := svc.Delete(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
