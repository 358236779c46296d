package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/dossier/internal/autosave"
	"github.com/starford/dossier/internal/dossierservice"
	"github.com/starford/dossier/internal/repository"
	"github.com/starford/dossier/internal/reviewgate"
	"github.com/starford/dossier/internal/stepcodec"
	"github.com/starford/dossier/internal/summary"
	"github.com/starford/dossier/internal/testutil"
)

type testOpts struct {
	authToken   string
	reviewerKey string
	sse         http.Handler
}

// testEnv builds an in-memory service and its router.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, opts testOpts) (*dossierservice.Service, http.Handler) {
	t.Helper()
	store, _ := testutil.MemoryStore(t)
	clock := testutil.NewClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), time.Second)
	repo := repository.New(store, repository.WithIDs(&testutil.SeqIDs{}), repository.WithClock(clock.Now))
	codec := stepcodec.New(stepcodec.WithClock(clock.Now))
	svc := dossierservice.New(repo, codec, summary.NewExtractor(codec),
		dossierservice.WithClock(clock.Now),
		dossierservice.WithDrafts(autosave.New(time.Hour)),
	)
	t.Cleanup(func() { svc.Close() })
	gate := reviewgate.New(reviewgate.NewVerifier(opts.reviewerKey), store)
	router := NewRouter(svc, gate, opts.authToken != "", opts.authToken, opts.sse)
	return svc, router
}

func do(t *testing.T, router http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createDossier(t *testing.T, router http.Handler, body any) DossierResponse {
	t.Helper()
	w := do(t, router, http.MethodPost, "/dossiers", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var doc DossierResponse
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return doc
}

func TestCreateAndGetDossier(t *testing.T) {
	_, router := testEnv(t, testOpts{})

	doc := createDossier(t, router, map[string]any{"meta": map[string]string{"projectName": "Referral triage"}})
	if doc.Dossier.Meta.ProjectName != "Referral triage" {
		t.Errorf("projectName = %q", doc.Dossier.Meta.ProjectName)
	}
	if doc.ETag == "" {
		t.Error("missing etag")
	}

	w := do(t, router, http.MethodGet, "/dossiers/"+doc.Dossier.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if got := w.Header().Get("ETag"); got != `"`+doc.ETag+`"` {
		t.Errorf("ETag header = %q", got)
	}
}

func TestCreateEmptyBodyAndDemo(t *testing.T) {
	_, router := testEnv(t, testOpts{})

	req := httptest.NewRequest(http.MethodPost, "/dossiers", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("empty create = %d, body = %s", w.Code, w.Body.String())
	}

	demo := createDossier(t, router, map[string]any{"demo": true})
	if !strings.Contains(demo.Dossier.Meta.ProjectName, "DEMO") {
		t.Errorf("demo name = %q", demo.Dossier.Meta.ProjectName)
	}
}

func TestCreateRejectsBlankName(t *testing.T) {
	_, router := testEnv(t, testOpts{})
	w := do(t, router, http.MethodPost, "/dossiers", map[string]any{"meta": map[string]string{"projectName": ""}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank name = %d, want 400", w.Code)
	}
}

func TestListDossiers(t *testing.T) {
	_, router := testEnv(t, testOpts{})
	createDossier(t, router, nil)
	last := createDossier(t, router, nil)

	w := do(t, router, http.MethodGet, "/dossiers", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var resp DossierListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 2 || len(resp.Dossiers) != 2 {
		t.Fatalf("total = %d, len = %d", resp.Total, len(resp.Dossiers))
	}
	if resp.Dossiers[0].ID != last.Dossier.ID {
		t.Errorf("first = %s, want most recent %s", resp.Dossiers[0].ID, last.Dossier.ID)
	}
	if resp.ActiveID != last.Dossier.ID {
		t.Errorf("activeId = %s", resp.ActiveID)
	}
}

func TestStorageKeysAreNotAddressable(t *testing.T) {
	svc, router := testEnv(t, testOpts{})
	a := createDossier(t, router, nil)
	b := createDossier(t, router, nil)
	repo := svc.Repository()
	ctx := context.Background()

	paths := []string{
		"/dossiers/" + repo.ActiveKey(),
		"/dossiers/" + repo.Key(a.Dossier.ID),
		"/dossiers/" + repo.Key(b.Dossier.ID) + "/export",
	}
	for _, p := range paths {
		for _, method := range []string{http.MethodGet, http.MethodDelete} {
			if w := do(t, router, method, p, nil); w.Code != http.StatusNotFound {
				t.Errorf("%s %s = %d, want 404", method, p, w.Code)
			}
		}
	}

	if got := repo.ActiveID(ctx); got != b.Dossier.ID {
		t.Errorf("active = %q, want %q", got, b.Dossier.ID)
	}
	if n := len(svc.List(ctx)); n != 2 {
		t.Errorf("dossiers = %d, want 2", n)
	}
}

func TestUpdateMetaWithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, testOpts{})
	doc := createDossier(t, router, nil)
	path := "/dossiers/" + doc.Dossier.ID + "/meta"

	w := do(t, router, http.MethodPut, path, map[string]string{"organisation": "North Clinic"}, "If-Match", `"`+doc.ETag+`"`)
	if w.Code != http.StatusOK {
		t.Fatalf("update with correct checksum = %d, body = %s", w.Code, w.Body.String())
	}

	// Stale checksum → 409.
	w = do(t, router, http.MethodPut, path, map[string]string{"organisation": "South Clinic"}, "If-Match", doc.ETag)
	if w.Code != http.StatusConflict {
		t.Errorf("update with stale checksum = %d, want 409", w.Code)
	}

	// No If-Match → no locking enforced.
	w = do(t, router, http.MethodPut, path, map[string]string{"notes": "n"})
	if w.Code != http.StatusOK {
		t.Errorf("update without If-Match = %d, want 200", w.Code)
	}
}

func TestDeleteDossier(t *testing.T) {
	_, router := testEnv(t, testOpts{})
	doc := createDossier(t, router, nil)

	w := do(t, router, http.MethodDelete, "/dossiers/"+doc.Dossier.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}
	w = do(t, router, http.MethodGet, "/dossiers/"+doc.Dossier.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	w = do(t, router, http.MethodDelete, "/dossiers/"+doc.Dossier.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestStepRoundTripAndMigration(t *testing.T) {
	_, router := testEnv(t, testOpts{})
	doc := createDossier(t, router, nil)
	base := "/dossiers/" + doc.Dossier.ID + "/steps/"

	// First-generation payload is stored in the current generation.
	w := do(t, router, http.MethodPut, base+"1-4", `{"leadMetric1":"Triage time","guardrails":"no extra clicks"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("put step = %d, body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, base+"1-4", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get step = %d", w.Code)
	}
	var resp struct {
		Payload  stepcodec.Step14 `json:"payload"`
		Complete bool             `json:"complete"`
		Next     string           `json:"next"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Payload.Version != stepcodec.Step14Version {
		t.Errorf("version = %q", resp.Payload.Version)
	}
	if len(resp.Payload.LeadMetrics) != 2 || resp.Payload.LeadMetrics[0].Name != "Triage time" {
		t.Errorf("leadMetrics = %+v", resp.Payload.LeadMetrics)
	}
	if !resp.Complete || resp.Next != "1-5" {
		t.Errorf("complete = %v, next = %q", resp.Complete, resp.Next)
	}
}

func TestStepErrors(t *testing.T) {
	_, router := testEnv(t, testOpts{})
	doc := createDossier(t, router, nil)
	base := "/dossiers/" + doc.Dossier.ID + "/steps/"

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown step", http.MethodGet, base + "2-1", nil, http.StatusNotFound},
		{"invalid json", http.MethodPut, base + "1-1", "{", http.StatusBadRequest},
		{"not an object", http.MethodPut, base + "1-1", `"text"`, http.StatusBadRequest},
		{"unknown generation", http.MethodPut, base + "1-6", `{"version":"1.6-v9"}`, http.StatusBadRequest},
		{"missing dossier", http.MethodGet, "/dossiers/nope/steps/1-1", nil, http.StatusNotFound},
	}
	for _, tc := range cases {
		w := do(t, router, tc.method, tc.path, tc.body)
		if w.Code != tc.want {
			t.Errorf("%s: status = %d, want %d (body %s)", tc.name, w.Code, tc.want, w.Body.String())
		}
	}
}

func TestDraftStep(t *testing.T) {
	svc, router := testEnv(t, testOpts{})
	doc := createDossier(t, router, nil)
	path := "/dossiers/" + doc.Dossier.ID + "/steps/1-2/draft"

	w := do(t, router, http.MethodPost, path, `{"buyers":"CFO"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("draft = %d, body = %s", w.Code, w.Body.String())
	}
	if n := svc.FlushDrafts(); n != 1 {
		t.Fatalf("flushed = %d, want 1", n)
	}
	v, err := svc.ReadStep(context.Background(), doc.Dossier.ID, "1-2")
	if err != nil {
		t.Fatal(err)
	}
	if v.Payload.(stepcodec.Step12).Buyers != "CFO" {
		t.Errorf("buyers = %q", v.Payload.(stepcodec.Step12).Buyers)
	}
}

func TestVisitAndSummaries(t *testing.T) {
	_, router := testEnv(t, testOpts{})
	doc := createDossier(t, router, nil)
	base := "/dossiers/" + doc.Dossier.ID

	w := do(t, router, http.MethodPost, base+"/visit/1-6", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("visit = %d", w.Code)
	}
	var visited DossierResponse
	_ = json.Unmarshal(w.Body.Bytes(), &visited)
	if visited.Dossier.LastVisitedStepID != "1-6" {
		t.Errorf("lastVisitedStepId = %q", visited.Dossier.LastVisitedStepID)
	}

	do(t, router, http.MethodPut, base+"/steps/1-6", `{"version":"1.6-v2","sessions":[{"kind":"interview","pains":["waits"],"severity010":6}]}`)

	w = do(t, router, http.MethodGet, base+"/summary", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("summary = %d", w.Code)
	}
	var rep SummaryResponse
	_ = json.Unmarshal(w.Body.Bytes(), &rep)
	if rep.Evidence == nil || rep.Evidence.Total != 1 {
		t.Fatalf("evidence = %+v", rep.Evidence)
	}
	if rep.Progress.Total != 10 {
		t.Errorf("progress total = %d", rep.Progress.Total)
	}

	w = do(t, router, http.MethodPost, base+"/snapshots/1-6", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("snapshot = %d, body = %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodPost, base+"/snapshots/1-6", nil)
	var gate struct {
		Payload stepcodec.Step110 `json:"payload"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &gate)
	if n := summary.CountTagged(gate.Payload.AutoEvidence.Step16, summary.TagEvidence); n != 1 {
		t.Errorf("snapshot blocks = %d, want 1", n)
	}
	w = do(t, router, http.MethodPost, base+"/snapshots/1-2", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("snapshot of 1-2 = %d, want 404", w.Code)
	}

	w = do(t, router, http.MethodGet, base+"/summary.txt", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("summary.txt = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content-type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "Snapshot from 1.6:\n[[auto:1.6]]") {
		t.Errorf("summary.txt missing snapshot: %s", w.Body.String())
	}
}

func TestExportImport(t *testing.T) {
	_, router := testEnv(t, testOpts{})
	doc := createDossier(t, router, map[string]any{"meta": map[string]string{"projectName": "Clinic Flow"}})

	w := do(t, router, http.MethodGet, "/dossiers/"+doc.Dossier.ID+"/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d", w.Code)
	}
	cd := w.Header().Get("Content-Disposition")
	if !strings.Contains(cd, "clinic-flow-"+doc.Dossier.ID+".json") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if w.Header().Get("ETag") != `"`+doc.ETag+`"` {
		t.Errorf("export ETag = %q, want stored checksum", w.Header().Get("ETag"))
	}
	exported := w.Body.String()

	w = do(t, router, http.MethodPost, "/dossiers/import?new_id=true", exported)
	if w.Code != http.StatusCreated {
		t.Fatalf("import = %d, body = %s", w.Code, w.Body.String())
	}
	var imported DossierResponse
	_ = json.Unmarshal(w.Body.Bytes(), &imported)
	if imported.Dossier.ID == doc.Dossier.ID {
		t.Error("new_id import kept the original id")
	}

	w = do(t, router, http.MethodGet, "/active", nil)
	var active ActiveResponse
	_ = json.Unmarshal(w.Body.Bytes(), &active)
	if active.ID != imported.Dossier.ID {
		t.Errorf("active = %s, want imported %s", active.ID, imported.Dossier.ID)
	}
}

func TestImportRejects(t *testing.T) {
	_, router := testEnv(t, testOpts{})
	for body, want := range map[string]string{
		"{oops":        "import failed: invalid JSON",
		`{"id":"x"}`:   "import failed: JSON does not look like a dossier",
		`["not","it"]`: "import failed: JSON does not look like a dossier",
	} {
		w := do(t, router, http.MethodPost, "/dossiers/import", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("import %q = %d, want 400", body, w.Code)
			continue
		}
		var resp errResponse
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Error != want {
			t.Errorf("import %q error = %q, want %q", body, resp.Error, want)
		}
	}
}

func TestImportMultipart(t *testing.T) {
	_, router := testEnv(t, testOpts{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "dossier.json")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte(`{"id":"3f2c8a4e-1b6d-4c2a-9e7f-5a1b2c3d4e5f","createdAt":"2025-01-01T00:00:00.000Z","updatedAt":"2025-01-01T00:00:00.000Z","meta":{},"steps":{}}`))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/dossiers/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("multipart import = %d, body = %s", w.Code, w.Body.String())
	}
	var doc DossierResponse
	_ = json.Unmarshal(w.Body.Bytes(), &doc)
	if doc.Dossier.ID != "3f2c8a4e-1b6d-4c2a-9e7f-5a1b2c3d4e5f" || doc.Dossier.Meta.ProjectName != "Imported dossier" {
		t.Errorf("imported = %+v", doc.Dossier)
	}
}

func TestActive(t *testing.T) {
	_, router := testEnv(t, testOpts{})

	w := do(t, router, http.MethodGet, "/active", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("active with no dossiers = %d, want 404", w.Code)
	}

	first := createDossier(t, router, nil)
	createDossier(t, router, nil)

	w = do(t, router, http.MethodPut, "/active", map[string]string{"id": first.Dossier.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("set active = %d, body = %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodPut, "/active", map[string]string{"id": "missing"})
	if w.Code != http.StatusNotFound {
		t.Errorf("set missing active = %d, want 404", w.Code)
	}
	w = do(t, router, http.MethodPut, "/active", map[string]string{"id": "  "})
	if w.Code != http.StatusBadRequest {
		t.Errorf("set blank active = %d, want 400", w.Code)
	}
}

func TestReview(t *testing.T) {
	_, router := testEnv(t, testOpts{})
	doc := createDossier(t, router, nil)
	path := "/dossiers/" + doc.Dossier.ID + "/review"

	w := do(t, router, http.MethodPut, path, map[string]any{
		"scores":       map[string]int{"problem": 5, "metrics": 1},
		"overallNotes": "promising",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("put review = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ReviewResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 3 || resp.Max != 10 {
		t.Errorf("total = %v/%d, want 3/10", resp.Total, resp.Max)
	}

	w = do(t, router, http.MethodPut, path, map[string]any{"scores": map[string]int{"vibes": 2}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown rubric key = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodPost, path+"/draft", map[string]any{"overallNotes": "later"})
	if w.Code != http.StatusAccepted {
		t.Errorf("draft review = %d, want 202", w.Code)
	}
}

func TestReviewerGate(t *testing.T) {
	_, router := testEnv(t, testOpts{reviewerKey: "letmein"})

	w := do(t, router, http.MethodGet, "/reviewer/verify?key=wrong", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong key = %d, want 401", w.Code)
	}
	w = do(t, router, http.MethodGet, "/reviewer/verify?key=letmein", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("right key = %d", w.Code)
	}

	var status ReviewerStatusResponse
	w = do(t, router, http.MethodGet, "/reviewer/status", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &status)
	if !status.Configured || !status.Unlocked {
		t.Errorf("status = %+v, want configured and unlocked", status)
	}

	w = do(t, router, http.MethodDelete, "/reviewer/unlock", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("clear = %d, want 204", w.Code)
	}
	w = do(t, router, http.MethodGet, "/reviewer/status", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &status)
	if status.Unlocked {
		t.Error("still unlocked after clear")
	}
}

func TestReviewerGate_NotConfigured(t *testing.T) {
	_, router := testEnv(t, testOpts{})
	w := do(t, router, http.MethodGet, "/reviewer/verify?key=anything", nil)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("unconfigured = %d, want 500", w.Code)
	}
	var resp VerifyResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.OK || resp.Error != "Reviewer key not configured" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestCatalog(t *testing.T) {
	_, router := testEnv(t, testOpts{})
	w := do(t, router, http.MethodGet, "/steps", nil)
	var resp CatalogResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Steps) != 10 || len(resp.Sprints) != 3 {
		t.Errorf("steps = %d, sprints = %d", len(resp.Steps), len(resp.Sprints))
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, testOpts{authToken: "secret123"})
	w := do(t, router, http.MethodPost, "/dossiers", map[string]any{}, "Authorization", "Bearer secret123")
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, testOpts{authToken: "secret123"})
	w := do(t, router, http.MethodGet, "/dossiers", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, testOpts{authToken: "secret123"})
	w := do(t, router, http.MethodGet, "/dossiers", nil, "Authorization", "Bearer wrong")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, testOpts{})
	w := do(t, router, http.MethodGet, "/dossiers", nil)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

type streamStub struct{}

func (streamStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	<-r.Context().Done()
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnv(t, testOpts{authToken: "secret", sse: streamStub{}})
	w := do(t, router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnv(t, testOpts{authToken: "tok", sse: streamStub{}})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

func TestAuthMiddleware_QueryTokenForGET(t *testing.T) {
	_, router := testEnv(t, testOpts{authToken: "tok"})

	w := do(t, router, http.MethodGet, "/dossiers?access_token=tok", nil)
	if w.Code != http.StatusOK {
		t.Errorf("GET with query token = %d, want 200", w.Code)
	}
	w = do(t, router, http.MethodPost, "/dossiers?access_token=tok", map[string]any{})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("POST with query token = %d, want 401", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate challenge")
	}
}
