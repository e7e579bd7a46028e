package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"adhoc-admin/backend/internal/blob"
	"adhoc-admin/backend/internal/platform/apperr"
	"adhoc-admin/backend/internal/project/domain"
)

type memRepo struct {
	mu       sync.Mutex
	projects map[string]*domain.Project
	images   map[string]*domain.Image
	err      error
}

func newMemRepo() *memRepo {
	return &memRepo{projects: map[string]*domain.Project{}, images: map[string]*domain.Image{}}
}

func (m *memRepo) List(_ context.Context, publishedOnly bool) ([]*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*domain.Project
	for _, p := range m.projects {
		if publishedOnly && !p.Published {
			continue
		}
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].Title < out[j].Title
	})
	return out, nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.projects[id]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (m *memRepo) GetBySlug(_ context.Context, slug string) (*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.projects {
		if p.Slug == slug {
			c := *p
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memRepo) slugTaken(slug, except string) bool {
	for id, p := range m.projects {
		if p.Slug == slug && id != except {
			return true
		}
	}
	return false
}

func (m *memRepo) Create(_ context.Context, p *domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.slugTaken(p.Slug, "") {
		return &pgconn.PgError{Code: "23505"}
	}
	c := *p
	m.projects[p.ID] = &c
	return nil
}

func (m *memRepo) Update(_ context.Context, p *domain.Project) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	old, ok := m.projects[p.ID]
	if !ok {
		return false, nil
	}
	if m.slugTaken(p.Slug, p.ID) {
		return false, &pgconn.PgError{Code: "23505"}
	}
	p.CreatedAt = old.CreatedAt
	c := *p
	m.projects[p.ID] = &c
	return true, nil
}

func (m *memRepo) UpsertBySlug(_ context.Context, p *domain.Project) (*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.projects {
		if existing.Slug == p.Slug {
			id := existing.ID
			*existing = *p
			existing.ID = id
			c := *existing
			return &c, nil
		}
	}
	c := *p
	m.projects[p.ID] = &c
	return p, nil
}

func (m *memRepo) Delete(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.projects[id]; !ok {
		return false, nil
	}
	delete(m.projects, id)
	for iid, img := range m.images {
		if img.ProjectID == id {
			delete(m.images, iid)
		}
	}
	return true, nil
}

func (m *memRepo) imagesOf(projectID string) []*domain.Image {
	var out []*domain.Image
	for _, img := range m.images {
		if img.ProjectID == projectID {
			c := *img
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out
}

func (m *memRepo) ListImages(_ context.Context, projectID string) ([]*domain.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.imagesOf(projectID), nil
}

func (m *memRepo) ListImagesFor(_ context.Context, ids []string) (map[string][]*domain.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string][]*domain.Image{}
	for _, id := range ids {
		if imgs := m.imagesOf(id); len(imgs) > 0 {
			out[id] = imgs
		}
	}
	return out, nil
}

func (m *memRepo) GetImage(_ context.Context, projectID, imageID string) (*domain.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	img, ok := m.images[imageID]
	if !ok || img.ProjectID != projectID {
		return nil, nil
	}
	c := *img
	return &c, nil
}

func (m *memRepo) GetPublicImage(_ context.Context, imageID string) (*domain.Image, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	img, ok := m.images[imageID]
	if !ok {
		return nil, false, nil
	}
	c := *img
	return &c, m.projects[img.ProjectID].Published, nil
}

func (m *memRepo) CreateImage(_ context.Context, img *domain.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	img.SortOrder = len(m.imagesOf(img.ProjectID))
	c := *img
	m.images[img.ID] = &c
	return nil
}

func (m *memRepo) RecordUpload(_ context.Context, imageID, contentType string, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	img := m.images[imageID]
	if contentType != "" {
		img.ContentType = contentType
	}
	img.Bytes = &size
	return nil
}

func (m *memRepo) DeleteImage(_ context.Context, imageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.images, imageID)
	return nil
}

func (m *memRepo) Reorder(_ context.Context, projectID string, orderedIDs []string, coverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for i, id := range orderedIDs {
		if img, ok := m.images[id]; ok && img.ProjectID == projectID {
			img.SortOrder = i
		}
	}
	if coverID != "" {
		for _, img := range m.images {
			if img.ProjectID == projectID {
				img.IsCover = img.ID == coverID
			}
		}
	}
	return nil
}

type memBlobs struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	getErrs   int
	deleteErr error
	deleted   []string
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}, types: map[string]string{}}
}

func (b *memBlobs) Get(_ context.Context, key string) (*blob.Object, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.getErrs > 0 {
		b.getErrs--
		return nil, errors.New("connection reset")
	}
	data, ok := b.objects[key]
	if !ok {
		return nil, blob.ErrNotFound
	}
	return &blob.Object{Body: io.NopCloser(bytes.NewReader(data)), ContentType: b.types[key], ContentLength: int64(len(data))}, nil
}

func (b *memBlobs) Put(_ context.Context, key string, body io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	b.types[key] = contentType
	return nil
}

func (b *memBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, key)
	if b.deleteErr != nil {
		return b.deleteErr
	}
	delete(b.objects, key)
	return nil
}

func (b *memBlobs) Exists(_ context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok, nil
}

func (b *memBlobs) PresignPut(_ context.Context, key, _ string, ttl time.Duration) (string, error) {
	return "https://minio.local/media/" + key + "?ttl=" + ttl.String(), nil
}

func newTestService(t *testing.T) (*ProjectService, *memRepo, *memBlobs) {
	t.Helper()
	repo := newMemRepo()
	blobs := newMemBlobs()
	svc := NewProjectService(repo, blobs, nil)
	svc.now = func() time.Time { return time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC) }
	svc.newToken = func(int) (string, error) { return "tok", nil }
	return svc, repo, blobs
}

func intPtr(n int) *int    { return &n }
func boolPtr(b bool) *bool { return &b }

func validInput() Input {
	return Input{Slug: " Villa Beirut ", Title: "Villa", Location: "Beirut", Year: intPtr(2024), Category: "Residential", Description: "Stone house"}
}

func wantKind(t *testing.T, err error, kind apperr.Kind, msg string) {
	t.Helper()
	e, ok := apperr.As(err)
	if !ok {
		t.Fatalf("error = %v, want apperr kind %d", err, kind)
	}
	if e.Kind != kind || e.Message != msg {
		t.Fatalf("error = (%d, %q), want (%d, %q)", e.Kind, e.Message, kind, msg)
	}
}

func TestCreate_NormalizesAndDefaultsPublished(t *testing.T) {
	svc, _, _ := newTestService(t)
	p, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Slug != "villa-beirut" {
		t.Errorf("Slug = %q, want villa-beirut", p.Slug)
	}
	if !p.Published {
		t.Error("Published should default to true on create")
	}
	if p.ID == "" || p.CreatedAt.IsZero() {
		t.Error("Create should assign id and timestamps")
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	testCases := []struct {
		name string
		mut  func(*Input)
	}{
		{"missing year", func(in *Input) { in.Year = nil }},
		{"slug normalizes to empty", func(in *Input) { in.Slug = "!!!" }},
		{"blank title", func(in *Input) { in.Title = "  " }},
		{"missing location", func(in *Input) { in.Location = "" }},
		{"missing description", func(in *Input) { in.Description = "" }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mut(&in)
			_, err := svc.Create(context.Background(), in)
			wantKind(t, err, apperr.KindValidation, "Missing required fields")
		})
	}
}

func TestCreate_DuplicateSlug(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Create(context.Background(), validInput()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := svc.Create(context.Background(), validInput())
	wantKind(t, err, apperr.KindConflict, "Slug already exists")
}

func TestCreate_DatabaseDown(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.err = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	_, err := svc.Create(context.Background(), validInput())
	wantKind(t, err, apperr.KindDependencyUnavailable, "Database unavailable")
}

func TestUpdate_DefaultsLocationAndPublished(t *testing.T) {
	svc, _, _ := newTestService(t)
	p, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	in := validInput()
	in.Location = ""
	got, err := svc.Update(context.Background(), p.ID, in)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Location != domain.DefaultLocation {
		t.Errorf("Location = %q, want %q", got.Location, domain.DefaultLocation)
	}
	if got.Published {
		t.Error("Published should be false when omitted on update")
	}
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Update(context.Background(), "missing", validInput())
	wantKind(t, err, apperr.KindNotFound, "")
}

func TestDelete_RemovesObjectsBestEffort(t *testing.T) {
	svc, _, blobs := newTestService(t)
	ctx := context.Background()
	p, _ := svc.Create(ctx, validInput())
	img, err := svc.RegisterImage(ctx, p.ID, NewImage{Filename: "a.jpg"})
	if err != nil {
		t.Fatalf("RegisterImage: %v", err)
	}
	blobs.deleteErr = errors.New("minio down")

	if err := svc.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(blobs.deleted) != 1 || blobs.deleted[0] != img.ObjectKey {
		t.Errorf("deleted = %v, want [%s]", blobs.deleted, img.ObjectKey)
	}
	if err := svc.Delete(ctx, p.ID); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("second Delete = %v, want NotFound", err)
	}
}

func TestRegisterImage_KeyAndOrder(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	p, _ := svc.Create(ctx, validInput())

	first, err := svc.RegisterImage(ctx, p.ID, NewImage{Filename: " Photo.JPG ", ContentType: "image/jpeg"})
	if err != nil {
		t.Fatalf("RegisterImage: %v", err)
	}
	if first.ObjectKey != "projects/"+p.ID+"/tok.jpg" {
		t.Errorf("ObjectKey = %q", first.ObjectKey)
	}
	svc.newToken = func(int) (string, error) { return "tok2", nil }
	second, _ := svc.RegisterImage(ctx, p.ID, NewImage{Filename: "plan"})
	if second.SortOrder != first.SortOrder+1 {
		t.Errorf("SortOrder = %d, want %d", second.SortOrder, first.SortOrder+1)
	}

	_, err = svc.RegisterImage(ctx, p.ID, NewImage{Filename: "  "})
	wantKind(t, err, apperr.KindValidation, "Missing filename")
}

func TestImageOps_RequireBlobStore(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.blobs = nil
	ctx := context.Background()

	_, err := svc.ListImages(ctx, "p1")
	wantKind(t, err, apperr.KindConfiguration, "MINIO_BUCKET is not configured")
	_, err = svc.RegisterImage(ctx, "p1", NewImage{Filename: "a.jpg"})
	wantKind(t, err, apperr.KindConfiguration, "MINIO_BUCKET is not configured")
	_, err = svc.PresignUpload(ctx, "k", "")
	wantKind(t, err, apperr.KindConfiguration, "MINIO_BUCKET is not configured")
}

func TestUploadAndOpenImage(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	p, _ := svc.Create(ctx, validInput())
	img, _ := svc.RegisterImage(ctx, p.ID, NewImage{Filename: "a.png", ContentType: "image/png"})

	if err := svc.UploadImage(ctx, p.ID, img.ID, strings.NewReader("pixels"), 6, ""); err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	stored := repo.images[img.ID]
	if stored.ContentType != "image/png" || stored.Bytes == nil || *stored.Bytes != 6 {
		t.Errorf("recorded upload = (%q, %v), want (image/png, 6)", stored.ContentType, stored.Bytes)
	}

	_, obj, err := svc.OpenImage(ctx, p.ID, img.ID)
	if err != nil {
		t.Fatalf("OpenImage: %v", err)
	}
	defer obj.Body.Close()
	data, _ := io.ReadAll(obj.Body)
	if string(data) != "pixels" {
		t.Errorf("body = %q, want pixels", data)
	}

	if _, _, err := svc.OpenImage(ctx, "other-project", img.ID); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("OpenImage from another project = %v, want NotFound", err)
	}
}

func TestOpenImage_ObjectMissing(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	p, _ := svc.Create(ctx, validInput())
	img, _ := svc.RegisterImage(ctx, p.ID, NewImage{Filename: "a.png"})

	_, _, err := svc.OpenImage(ctx, p.ID, img.ID)
	wantKind(t, err, apperr.KindNotFound, "")
}

func TestReorderImages(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	p, _ := svc.Create(ctx, validInput())
	a, _ := svc.RegisterImage(ctx, p.ID, NewImage{Filename: "a.png"})
	svc.newToken = func(int) (string, error) { return "tok2", nil }
	b, _ := svc.RegisterImage(ctx, p.ID, NewImage{Filename: "b.png"})

	if err := svc.ReorderImages(ctx, p.ID, []string{b.ID, a.ID}, a.ID); err != nil {
		t.Fatalf("ReorderImages: %v", err)
	}
	if repo.images[b.ID].SortOrder != 0 || repo.images[a.ID].SortOrder != 1 {
		t.Error("sort order should follow orderedIds")
	}
	if !repo.images[a.ID].IsCover || repo.images[b.ID].IsCover {
		t.Error("cover should be set on a only")
	}

	wantKind(t, svc.ReorderImages(ctx, p.ID, nil, ""), apperr.KindValidation, "orderedIds is required")
}

func TestPublicProjects_PublishedOnlyCoverFirst(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	p, _ := svc.Create(ctx, validInput())
	draft := validInput()
	draft.Slug = "draft"
	draft.Published = boolPtr(false)
	if _, err := svc.Create(ctx, draft); err != nil {
		t.Fatalf("Create draft: %v", err)
	}
	a, _ := svc.RegisterImage(ctx, p.ID, NewImage{Filename: "a.png"})
	svc.newToken = func(int) (string, error) { return "tok2", nil }
	b, _ := svc.RegisterImage(ctx, p.ID, NewImage{Filename: "b.png"})
	_ = svc.ReorderImages(ctx, p.ID, []string{a.ID, b.ID}, b.ID)

	got, err := svc.PublicProjects(ctx)
	if err != nil {
		t.Fatalf("PublicProjects: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1 published project", len(got))
	}
	if got[0].Client != "Residential" {
		t.Errorf("Client = %q, want category", got[0].Client)
	}
	want := []string{domain.PublicImageURL(b.ID), domain.PublicImageURL(a.ID)}
	if len(got[0].Images) != 2 || got[0].Images[0] != want[0] || got[0].Images[1] != want[1] {
		t.Errorf("Images = %v, want %v", got[0].Images, want)
	}
}

func TestFolderImages(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	p, _ := svc.Create(ctx, validInput())
	img, _ := svc.RegisterImage(ctx, p.ID, NewImage{Filename: "a.png"})

	urls, err := svc.FolderImages(ctx, "Villa Beirut")
	if err != nil {
		t.Fatalf("FolderImages: %v", err)
	}
	if len(urls) != 1 || urls[0] != domain.PublicImageURL(img.ID) {
		t.Errorf("urls = %v", urls)
	}

	_, err = svc.FolderImages(ctx, "nowhere")
	wantKind(t, err, apperr.KindNotFound, "Project not found")
}

func TestOpenPublicImage(t *testing.T) {
	svc, _, blobs := newTestService(t)
	ctx := context.Background()
	pub, _ := svc.Create(ctx, validInput())
	draftIn := validInput()
	draftIn.Slug = "draft"
	draftIn.Published = boolPtr(false)
	draft, _ := svc.Create(ctx, draftIn)

	img, _ := svc.RegisterImage(ctx, pub.ID, NewImage{Filename: "a.png"})
	svc.newToken = func(int) (string, error) { return "tok2", nil }
	hidden, _ := svc.RegisterImage(ctx, draft.ID, NewImage{Filename: "b.png"})
	svc.newToken = func(int) (string, error) { return "tok3", nil }
	missing, _ := svc.RegisterImage(ctx, pub.ID, NewImage{Filename: "c.png"})
	_ = svc.UploadImage(ctx, pub.ID, img.ID, strings.NewReader("x"), 1, "image/png")

	_, _, err := svc.OpenPublicImage(ctx, "nope")
	wantKind(t, err, apperr.KindNotFound, "Not found")
	_, _, err = svc.OpenPublicImage(ctx, hidden.ID)
	wantKind(t, err, apperr.KindNotFound, "Not published")
	_, _, err = svc.OpenPublicImage(ctx, missing.ID)
	wantKind(t, err, apperr.KindNotFound, "Object missing")

	blobs.getErrs = 1
	_, obj, err := svc.OpenPublicImage(ctx, img.ID)
	if err != nil {
		t.Fatalf("OpenPublicImage should recover from one transient failure: %v", err)
	}
	obj.Body.Close()
}

func TestPresignUpload(t *testing.T) {
	svc, _, _ := newTestService(t)
	url, err := svc.PresignUpload(context.Background(), "projects/p1/a.png", "image/png")
	if err != nil {
		t.Fatalf("PresignUpload: %v", err)
	}
	if !strings.Contains(url, "projects/p1/a.png") || !strings.Contains(url, "ttl=15m0s") {
		t.Errorf("url = %q", url)
	}
	_, err = svc.PresignUpload(context.Background(), "", "")
	wantKind(t, err, apperr.KindValidation, "")
}
