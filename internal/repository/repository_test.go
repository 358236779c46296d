package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/dossier/internal/apperr"
	"github.com/starford/dossier/internal/dossier"
	"github.com/starford/dossier/internal/kv"
	"github.com/starford/dossier/internal/stepcodec"
	"github.com/starford/dossier/internal/testutil"
)

type seqIDs struct{ n int }

func (s *seqIDs) New() string {
	s.n++
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", s.n)
}

func newRepo(t *testing.T) (*Repository, *kv.Memory, *testutil.Clock) {
	t.Helper()
	store, mem := testutil.MemoryStore(t)
	clock := testutil.NewClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), time.Second)
	return New(store, WithIDs(&seqIDs{}), WithClock(clock.Now)), mem, clock
}

func TestCreateSetsActiveAndResumePointer(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newRepo(t)

	name := "Triage"
	d := r.Create(ctx, dossier.MetaPatch{ProjectName: &name})
	assert.Equal(t, dossier.FirstStepID, d.LastVisitedStepID)
	assert.Equal(t, dossier.Version, d.Version)
	assert.Equal(t, "Triage", d.Meta.ProjectName)
	assert.Equal(t, d.ID, r.ActiveID(ctx))

	got := r.Get(ctx, d.ID)
	require.NotNil(t, got)
	assert.Equal(t, d.CreatedAt, got.CreatedAt)
}

func TestCreateDemo(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newRepo(t)
	d := r.CreateDemo(ctx)
	assert.Contains(t, d.Meta.ProjectName, "DEMO")
	assert.Contains(t, d.Meta.Notes, "DEMO ONLY.")
	assert.Equal(t, d.ID, r.ActiveID(ctx))
}

func TestGetMissingAndCorrupt(t *testing.T) {
	ctx := context.Background()
	r, mem, _ := newRepo(t)

	assert.Nil(t, r.Get(ctx, ""))
	assert.Nil(t, r.Get(ctx, "nope"))

	require.NoError(t, mem.Set(ctx, r.Key("bad"), "{not json"))
	assert.Nil(t, r.Get(ctx, "bad"))

	require.NoError(t, mem.Set(ctx, r.Key("shape"), `{"id":"shape","createdAt":1}`))
	assert.Nil(t, r.Get(ctx, "shape"))
}

func TestGetFallsBackToBareKey(t *testing.T) {
	ctx := context.Background()
	r, mem, _ := newRepo(t)
	const legacy = "5b0e8f52-7c1d-4e3a-8f6b-2d9c4a1e7b30"
	require.NoError(t, mem.Set(ctx, legacy, `{"id":"`+legacy+`","createdAt":"a","updatedAt":"b"}`))

	d := r.Get(ctx, legacy)
	require.NotNil(t, d)
	assert.Equal(t, legacy, d.ID)

	raw, ok := r.Export(ctx, legacy)
	assert.True(t, ok)
	assert.Contains(t, raw, legacy)

	r.Delete(ctx, legacy)
	_, err := mem.Get(ctx, legacy)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestBareKeyFallbackIgnoresOtherKeys(t *testing.T) {
	ctx := context.Background()
	r, mem, _ := newRepo(t)
	a := r.Create(ctx, dossier.MetaPatch{})
	b := r.Create(ctx, dossier.MetaPatch{})

	_, ok := r.Raw(ctx, r.Key(a.ID))
	assert.False(t, ok)
	assert.Nil(t, r.Get(ctx, r.ActiveKey()))

	r.Delete(ctx, r.ActiveKey())
	r.Delete(ctx, r.Key(a.ID))
	assert.Equal(t, b.ID, r.ActiveID(ctx))
	assert.Len(t, r.List(ctx), 2)
	_, err := mem.Get(ctx, r.ActiveKey())
	assert.NoError(t, err)
}

func TestListOrderingAndCorruptSkip(t *testing.T) {
	ctx := context.Background()
	r, mem, _ := newRepo(t)

	a := r.Create(ctx, dossier.MetaPatch{})
	b := r.Create(ctx, dossier.MetaPatch{})
	c := r.Create(ctx, dossier.MetaPatch{})

	// b and c tie on updatedAt; id breaks the tie.
	b.UpdatedAt = "2025-03-02T00:00:00.000Z"
	c.UpdatedAt = "2025-03-02T00:00:00.000Z"
	r.Upsert(ctx, b)
	r.Upsert(ctx, c)

	require.NoError(t, mem.Set(ctx, r.Key("corrupt"), "{{{"))
	require.NoError(t, mem.Set(ctx, "unrelated", "x"))

	list := r.List(ctx)
	require.Len(t, list, 3)
	assert.Equal(t, []string{b.ID, c.ID, a.ID}, []string{list[0].ID, list[1].ID, list[2].ID})
	assert.Equal(t, dossier.DefaultProjectName, list[0].ProjectName)
	assert.Equal(t, "/steps/1-1?d="+b.ID, list[0].ResumeHref)
}

func TestListCorruptEntryScenario(t *testing.T) {
	ctx := context.Background()
	r, mem, _ := newRepo(t)
	d := r.Create(ctx, dossier.MetaPatch{})
	require.NoError(t, mem.Set(ctx, r.Key("broken"), `{"id":`))

	list := r.List(ctx)
	require.Len(t, list, 1)
	assert.Equal(t, d.ID, list[0].ID)
}

func TestDeleteReassignsActive(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newRepo(t)

	a := r.Create(ctx, dossier.MetaPatch{})
	b := r.Create(ctx, dossier.MetaPatch{})
	require.Equal(t, b.ID, r.ActiveID(ctx))

	r.Delete(ctx, b.ID)
	assert.Equal(t, a.ID, r.ActiveID(ctx))
	assert.Nil(t, r.Get(ctx, b.ID))

	r.Delete(ctx, a.ID)
	assert.Equal(t, "", r.ActiveID(ctx))
}

func TestDeleteNonActiveKeepsPointer(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newRepo(t)
	a := r.Create(ctx, dossier.MetaPatch{})
	b := r.Create(ctx, dossier.MetaPatch{})
	r.Delete(ctx, a.ID)
	assert.Equal(t, b.ID, r.ActiveID(ctx))
}

func TestActiveIDMigratesLegacyKey(t *testing.T) {
	ctx := context.Background()
	r, mem, _ := newRepo(t)
	require.NoError(t, mem.Set(ctx, "rapidHealthSandbox.activeDossierId", "  old-id "))
	require.NoError(t, mem.Set(ctx, "dossier.activeId", "older-id"))

	assert.Equal(t, "old-id", r.ActiveID(ctx))
	v, err := mem.Get(ctx, r.ActiveKey())
	require.NoError(t, err)
	assert.Equal(t, "old-id", v)

	// Legacy keys are never written or removed.
	legacy, err := mem.Get(ctx, "rapidHealthSandbox.activeDossierId")
	require.NoError(t, err)
	assert.Equal(t, "  old-id ", legacy)
}

func TestActiveFallsBackWhenPointerDangles(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newRepo(t)
	assert.Nil(t, r.Active(ctx))

	d := r.Create(ctx, dossier.MetaPatch{})
	r.SetActiveID(ctx, "ghost")
	got := r.Active(ctx)
	require.NotNil(t, got)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, d.ID, r.ActiveID(ctx))
}

func TestUpsertSetsActiveOnlyWhenUnset(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newRepo(t)
	d1 := dossier.New("one", r.Now(), dossier.DefaultMeta())
	d2 := dossier.New("two", r.Now(), dossier.DefaultMeta())
	r.Upsert(ctx, d1)
	r.Upsert(ctx, d2)
	assert.Equal(t, "one", r.ActiveID(ctx))
}

func TestNamespace(t *testing.T) {
	ctx := context.Background()
	store, mem := testutil.MemoryStore(t)
	r := New(store, WithNamespace("acme"))
	d := r.Create(ctx, dossier.MetaPatch{})
	_, err := mem.Get(ctx, "acme:dossier:"+d.ID)
	assert.NoError(t, err)
	_, err = mem.Get(ctx, "acme:activeDossierId")
	assert.NoError(t, err)
}

func TestStorageFailureDegrades(t *testing.T) {
	ctx := context.Background()
	r := New(kv.NewSafe(testutil.FailingBackend{}, nil))
	d := r.Create(ctx, dossier.MetaPatch{})
	assert.NotEmpty(t, d.ID)
	assert.Nil(t, r.Get(ctx, d.ID))
	assert.Empty(t, r.List(ctx))
	assert.Equal(t, "", r.ActiveID(ctx))
	r.Delete(ctx, d.ID)
}

func TestExportIsVerbatim(t *testing.T) {
	ctx := context.Background()
	r, mem, _ := newRepo(t)
	text := `{"id":"x","createdAt":"a","updatedAt":"b","custom":[1,2]}`
	require.NoError(t, mem.Set(ctx, r.Key("x"), text))

	got, ok := r.Export(ctx, "x")
	require.True(t, ok)
	assert.Equal(t, text, got)

	_, ok = r.Export(ctx, "missing")
	assert.False(t, ok)
}

func TestImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newRepo(t)
	d := r.CreateDemo(ctx)
	d.Steps["1-2"] = json.RawMessage(`{"notes":"n","updatedAt":"2025-03-01T09:00:00.000Z"}`)
	d.LastVisitedStepID = "1-2"
	r.Upsert(ctx, d)

	text, ok := r.Export(ctx, d.ID)
	require.True(t, ok)
	r.Delete(ctx, d.ID)

	back, err := r.Import(ctx, text, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, d.ID, back.ID)
	assert.Equal(t, d.Meta, back.Meta)
	assert.Equal(t, d.CreatedAt, back.CreatedAt)
	assert.Equal(t, "1-2", back.LastVisitedStepID)
	assert.JSONEq(t, string(d.Steps["1-2"]), string(back.Steps["1-2"]))
	assert.NotEqual(t, d.UpdatedAt, back.UpdatedAt)
	assert.Equal(t, d.ID, r.ActiveID(ctx))
}

func TestImportBackfills(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newRepo(t)
	const id = "7d3e1c2a-9b4f-4a6e-b1c2-3d4e5f6a7b8c"
	d, err := r.Import(ctx, `{"id":"`+id+`","createdAt":"","updatedAt":"x"}`, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, id, d.ID)
	assert.Equal(t, dossier.Version, d.Version)
	assert.Equal(t, dossier.ImportedProjectName, d.Meta.ProjectName)
	assert.Equal(t, dossier.FirstStepID, d.LastVisitedStepID)
	assert.NotEmpty(t, d.CreatedAt)
	assert.NotNil(t, d.Steps)
	assert.Equal(t, id, r.ActiveID(ctx))
}

func TestImportReassignsForeignID(t *testing.T) {
	ctx := context.Background()
	r, mem, _ := newRepo(t)
	d, err := r.Import(ctx, `{"id":"rhs:activeDossierId","createdAt":"a","updatedAt":"b"}`, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, "00000000-0000-4000-8000-000000000001", d.ID)
	assert.NotNil(t, r.Get(ctx, d.ID))
	assert.Equal(t, d.ID, r.ActiveID(ctx))

	keys, err := mem.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{r.Key(d.ID), r.ActiveKey()}, keys)
}

func TestImportExportKeepsUnknownFields(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newRepo(t)
	const id = "7d3e1c2a-9b4f-4a6e-b1c2-3d4e5f6a7b8c"
	in := `{"id":"` + id + `","createdAt":"2025-01-01T00:00:00.000Z","updatedAt":"2025-01-01T00:00:00.000Z",` +
		`"tags":["pilot"],"meta":{"projectName":"Ward flow","sponsor":"Ops","notes":42},"steps":{}}`

	_, err := r.Import(ctx, in, ImportOptions{})
	require.NoError(t, err)
	text, ok := r.Export(ctx, id)
	require.True(t, ok)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &got))
	assert.Equal(t, []any{"pilot"}, got["tags"])
	meta := got["meta"].(map[string]any)
	assert.Equal(t, "Ops", meta["sponsor"])
	assert.Equal(t, float64(42), meta["notes"])
	assert.Equal(t, "Ward flow", meta["projectName"])

	again, err := r.Import(ctx, text, ImportOptions{})
	require.NoError(t, err)
	assert.JSONEq(t, `["pilot"]`, string(again.Extra["tags"]))
}

func TestImportMigratesSteps(t *testing.T) {
	ctx := context.Background()
	store, _ := testutil.MemoryStore(t)
	r := New(store, WithIDs(&seqIDs{}), WithMigrator(stepcodec.New()))
	const id = "7d3e1c2a-9b4f-4a6e-b1c2-3d4e5f6a7b8c"
	in := `{"id":"` + id + `","createdAt":"a","updatedAt":"b","steps":{` +
		`"1-10":{"decision":"iterate","updatedAt":"2025-01-01T00:00:00.000Z"},` +
		`"1-6":{"version":"1.6-v9","updatedAt":"2025-01-01T00:00:00.000Z"}}}`

	d, err := r.Import(ctx, in, ImportOptions{})
	require.NoError(t, err)

	var gate map[string]any
	require.NoError(t, json.Unmarshal(d.Steps["1-10"], &gate))
	assert.Equal(t, "1.10-v2", gate["version"])
	assert.Equal(t, "one-iteration", gate["decision"])
	assert.Equal(t, "2025-01-01T00:00:00.000Z", gate["updatedAt"])
	assert.JSONEq(t, `{"version":"1.6-v9","updatedAt":"2025-01-01T00:00:00.000Z"}`, string(d.Steps["1-6"]))
}

func TestImportNewID(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newRepo(t)
	orig := r.Create(ctx, dossier.MetaPatch{})
	text, _ := r.Export(ctx, orig.ID)

	cp, err := r.Import(ctx, text, ImportOptions{NewID: true})
	require.NoError(t, err)
	assert.NotEqual(t, orig.ID, cp.ID)
	assert.Len(t, r.List(ctx), 2)
}

func TestImportRejectsAtomically(t *testing.T) {
	ctx := context.Background()
	r, mem, _ := newRepo(t)

	_, err := r.Import(ctx, "{oops", ImportOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInvalidJSON))
	assert.Equal(t, "import failed: invalid JSON", err.Error())

	_, err = r.Import(ctx, `{"id":"x"}`, ImportOptions{})
	assert.ErrorIs(t, err, apperr.ErrNotDossier)

	_, err = r.Import(ctx, `{"id":"  ","createdAt":"a","updatedAt":"b"}`, ImportOptions{})
	assert.ErrorIs(t, err, apperr.ErrNotDossier)

	keys, err := mem.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestExportFilename(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newRepo(t)
	name := "Ward Round v2"
	d := r.Create(ctx, dossier.MetaPatch{ProjectName: &name})
	assert.Equal(t, "ward-round-v2-"+d.ID+".json", r.ExportFilename(ctx, d.ID))
	assert.Equal(t, "dossier-zzz.json", r.ExportFilename(ctx, "zzz"))
}
